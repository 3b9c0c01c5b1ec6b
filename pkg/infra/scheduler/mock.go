package scheduler

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

const (
	StateEnabled = "ENABLED"
	StatePaused  = "PAUSED"
)

// Mock keeps jobs in memory keyed by fully qualified name
type Mock struct {
	Locations []*model.SchedulerLocation
	Jobs      map[string]*model.SchedulerJob
	Runs   []string
	Closed bool

	mutex sync.Mutex
}

var _ interfaces.Scheduler = &Mock{}

func NewMock() *Mock {
	return &Mock{Jobs: map[string]*model.SchedulerJob{}}
}

func (x *Mock) lookup(name string) (*model.SchedulerJob, error) {
	job, ok := x.Jobs[name]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "job not found", goerr.V("job", name))
	}
	return job, nil
}

func cloneJob(job *model.SchedulerJob) *model.SchedulerJob {
	cp := *job
	return &cp
}

// ListLocations returns Locations with names under project
func (x *Mock) ListLocations(ctx context.Context, project string) ([]*model.SchedulerLocation, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	locations := make([]*model.SchedulerLocation, 0, len(x.Locations))
	for _, loc := range x.Locations {
		cp := *loc
		cp.Name = project + "/locations/" + loc.ID.String()
		locations = append(locations, &cp)
	}
	return locations, nil
}

func (x *Mock) ListJobs(ctx context.Context, parent string) ([]*model.SchedulerJob, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	var jobs []*model.SchedulerJob
	for name, job := range x.Jobs {
		if strings.HasPrefix(name, parent+"/jobs/") {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs, nil
}

func (x *Mock) GetJob(ctx context.Context, name string) (*model.SchedulerJob, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	job, err := x.lookup(name)
	if err != nil {
		return nil, err
	}
	return cloneJob(job), nil
}

func (x *Mock) CreateJob(ctx context.Context, parent string, job *model.SchedulerJob) (*model.SchedulerJob, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if _, ok := x.Jobs[job.Name]; ok {
		return nil, goerr.Wrap(types.ErrAlreadyExists, "job already exists", goerr.V("job", job.Name))
	}
	created := cloneJob(job)
	created.State = StateEnabled
	x.Jobs[job.Name] = created
	return cloneJob(created), nil
}

func (x *Mock) UpdateJob(ctx context.Context, job *model.SchedulerJob) (*model.SchedulerJob, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	cur, err := x.lookup(job.Name)
	if err != nil {
		return nil, err
	}
	if job.Description != "" {
		cur.Description = job.Description
	}
	if job.Schedule != "" {
		cur.Schedule = job.Schedule
	}
	if job.TimeZone != "" {
		cur.TimeZone = job.TimeZone
	}
	if job.PubSubTarget != nil {
		cur.PubSubTarget = job.PubSubTarget
	}
	if job.HTTPTarget != nil {
		cur.HTTPTarget = job.HTTPTarget
	}
	return cloneJob(cur), nil
}

func (x *Mock) DeleteJob(ctx context.Context, name string) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if _, err := x.lookup(name); err != nil {
		return err
	}
	delete(x.Jobs, name)
	return nil
}

func (x *Mock) setState(name, state string) (*model.SchedulerJob, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	job, err := x.lookup(name)
	if err != nil {
		return nil, err
	}
	job.State = state
	return cloneJob(job), nil
}

func (x *Mock) PauseJob(ctx context.Context, name string) (*model.SchedulerJob, error) {
	return x.setState(name, StatePaused)
}

func (x *Mock) ResumeJob(ctx context.Context, name string) (*model.SchedulerJob, error) {
	return x.setState(name, StateEnabled)
}

func (x *Mock) RunJob(ctx context.Context, name string) (*model.SchedulerJob, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	job, err := x.lookup(name)
	if err != nil {
		return nil, err
	}
	x.Runs = append(x.Runs, name)
	return cloneJob(job), nil
}

func (x *Mock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Closed = true
	return nil
}
