package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// Tasks enqueues HTTP target tasks to Cloud Tasks queues
type Tasks struct {
	backend   interfaces.Tasks
	projectID types.GoogleProjectID
	now       func() time.Time
}

func NewTasks(backend interfaces.Tasks, projectID types.GoogleProjectID) *Tasks {
	return &Tasks{
		backend:   backend,
		projectID: projectID,
		now:       time.Now,
	}
}

func (x *Tasks) ProjectID() types.GoogleProjectID { return x.projectID }

func (x *Tasks) locationPath(location types.GoogleLocation) string {
	return fmt.Sprintf("projects/%s/locations/%s", x.projectID, location)
}

// QueuePath returns projects/{project}/locations/{location}/queues/{queue}
func (x *Tasks) QueuePath(location types.GoogleLocation, queue types.TaskQueueID) string {
	return x.locationPath(location) + "/queues/" + queue.String()
}

func (x *Tasks) validQueue(op string, location types.GoogleLocation, queue types.TaskQueueID) error {
	if location == "" || queue == "" {
		return invalidInput(types.ServiceTasks, op, "location and queue are required", goerr.V("location", location), goerr.V("queue", queue))
	}
	if x.projectID == "" {
		return invalidInput(types.ServiceTasks, op, "project ID is not known")
	}
	return nil
}

// CreateQueue creates a queue in the location
func (x *Tasks) CreateQueue(ctx context.Context, location types.GoogleLocation, queue types.TaskQueueID) error {
	const op = "CreateQueue"
	if err := x.validQueue(op, location, queue); err != nil {
		return err
	}

	if err := x.backend.CreateQueue(ctx, x.locationPath(location), queue.String()); err != nil {
		return opError(types.ServiceTasks, op, err)
	}
	return nil
}

// CreateHTTPTask enqueues a task calling req.URL with the JSON encoded payload and returns the task name
func (x *Tasks) CreateHTTPTask(ctx context.Context, req model.HTTPTaskRequest) (types.TaskName, error) {
	const op = "CreateHTTPTask"
	if err := x.validQueue(op, req.Location, req.Queue); err != nil {
		return "", err
	}
	if req.URL == "" {
		return "", invalidInput(types.ServiceTasks, op, "target URL is required", goerr.V("queue", req.Queue))
	}

	spec := &model.TaskSpec{
		URL:                 req.URL,
		Method:              req.HTTPMethod(),
		Headers:             map[string]string{"Content-Type": "application/json"},
		ServiceAccountEmail: req.ServiceAccountEmail,
	}
	if req.Payload != nil {
		body, err := json.Marshal(req.Payload)
		if err != nil {
			return "", opError(types.ServiceTasks, op, goerr.Wrap(err, "failed to marshal task payload", goerr.V("url", req.URL)))
		}
		spec.Body = body
	}
	if req.Delay > 0 {
		spec.ScheduleTime = x.now().Add(req.Delay)
	}

	task, err := x.backend.CreateTask(ctx, x.QueuePath(req.Location, req.Queue), spec)
	if err != nil {
		return "", opError(types.ServiceTasks, op, err)
	}

	utils.CtxLogger(ctx).Info("task created", "task", task.Name, "url", req.URL, "scheduleTime", task.ScheduleTime)
	return task.Name, nil
}

// ListTasks returns tasks waiting in the queue
func (x *Tasks) ListTasks(ctx context.Context, location types.GoogleLocation, queue types.TaskQueueID) ([]*model.Task, error) {
	const op = "ListTasks"
	if err := x.validQueue(op, location, queue); err != nil {
		return nil, err
	}

	tasks, err := x.backend.ListTasks(ctx, x.QueuePath(location, queue))
	if err != nil {
		return nil, opError(types.ServiceTasks, op, err)
	}
	return tasks, nil
}

func (x *Tasks) Close() error {
	return x.backend.Close()
}
