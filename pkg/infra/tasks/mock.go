package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Mock keeps queues and tasks in memory
type Mock struct {
	Queues map[string][]*model.Task
	Specs  map[types.TaskName]*model.TaskSpec
	Closed bool

	seq   int
	mutex sync.Mutex
}

var _ interfaces.Tasks = &Mock{}

func NewMock() *Mock {
	return &Mock{
		Queues: map[string][]*model.Task{},
		Specs:  map[types.TaskName]*model.TaskSpec{},
	}
}

func (x *Mock) CreateQueue(ctx context.Context, parent, name string) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	queuePath := parent + "/queues/" + name
	if _, ok := x.Queues[queuePath]; ok {
		return goerr.Wrap(types.ErrAlreadyExists, "queue already exists", goerr.V("queue", queuePath))
	}
	x.Queues[queuePath] = nil
	return nil
}

func (x *Mock) CreateTask(ctx context.Context, queuePath string, spec *model.TaskSpec) (*model.Task, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if _, ok := x.Queues[queuePath]; !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "queue not found", goerr.V("queue", queuePath))
	}

	x.seq++
	now := time.Now()
	task := &model.Task{
		Name:         types.TaskName(fmt.Sprintf("%s/tasks/%d", queuePath, x.seq)),
		URL:          spec.URL,
		Method:       strings.ToUpper(spec.Method),
		ScheduleTime: spec.ScheduleTime,
		CreateTime:   now,
	}
	if task.ScheduleTime.IsZero() {
		task.ScheduleTime = now
	}

	x.Queues[queuePath] = append(x.Queues[queuePath], task)
	x.Specs[task.Name] = spec
	return task, nil
}

func (x *Mock) ListTasks(ctx context.Context, queuePath string) ([]*model.Task, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	tasks, ok := x.Queues[queuePath]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "queue not found", goerr.V("queue", queuePath))
	}
	return append([]*model.Task(nil), tasks...), nil
}

func (x *Mock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Closed = true
	return nil
}
