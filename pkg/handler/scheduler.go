package handler

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// Scheduler manages Cloud Scheduler jobs of one project
type Scheduler struct {
	backend   interfaces.Scheduler
	projectID types.GoogleProjectID
}

func NewScheduler(backend interfaces.Scheduler, projectID types.GoogleProjectID) *Scheduler {
	return &Scheduler{backend: backend, projectID: projectID}
}

func (x *Scheduler) ProjectID() types.GoogleProjectID { return x.projectID }

func (x *Scheduler) validJob(op string, location types.GoogleLocation, job types.SchedulerJobID) error {
	if location == "" || job == "" {
		return invalidInput(types.ServiceScheduler, op, "location and job are required", goerr.V("location", location), goerr.V("job", job))
	}
	return nil
}

// NewPubSubJob builds a job publishing data to topic on schedule
func (x *Scheduler) NewPubSubJob(location types.GoogleLocation, job types.SchedulerJobID, description, schedule, timeZone string, topic types.PubSubTopicID, data []byte, attrs map[string]string) *model.SchedulerJob {
	return &model.SchedulerJob{
		Name:        model.SchedulerJobPath(x.projectID, location, job),
		Description: description,
		Schedule:    schedule,
		TimeZone:    timeZone,
		PubSubTarget: &model.PubSubTarget{
			TopicName:  model.TopicPath(x.projectID, topic),
			Data:       data,
			Attributes: attrs,
		},
	}
}

// NewHTTPJob builds a job calling target on schedule
func (x *Scheduler) NewHTTPJob(location types.GoogleLocation, job types.SchedulerJobID, description, schedule, timeZone string, target model.HTTPTarget) *model.SchedulerJob {
	return &model.SchedulerJob{
		Name:        model.SchedulerJobPath(x.projectID, location, job),
		Description: description,
		Schedule:    schedule,
		TimeZone:    timeZone,
		HTTPTarget:  &target,
	}
}

// ListLocations returns the locations of the project where jobs can be created
func (x *Scheduler) ListLocations(ctx context.Context) ([]*model.SchedulerLocation, error) {
	const op = "ListLocations"
	if x.projectID == "" {
		return nil, invalidInput(types.ServiceScheduler, op, "project ID is required")
	}

	locations, err := x.backend.ListLocations(ctx, model.ProjectPath(x.projectID))
	if err != nil {
		return nil, opError(types.ServiceScheduler, op, err)
	}
	return locations, nil
}

func (x *Scheduler) ListJobs(ctx context.Context, location types.GoogleLocation) ([]*model.SchedulerJob, error) {
	const op = "ListJobs"
	if location == "" {
		return nil, invalidInput(types.ServiceScheduler, op, "location is required")
	}

	jobs, err := x.backend.ListJobs(ctx, model.SchedulerLocationPath(x.projectID, location))
	if err != nil {
		return nil, opError(types.ServiceScheduler, op, err)
	}
	return jobs, nil
}

func (x *Scheduler) GetJob(ctx context.Context, location types.GoogleLocation, job types.SchedulerJobID) (*model.SchedulerJob, error) {
	const op = "GetJob"
	if err := x.validJob(op, location, job); err != nil {
		return nil, err
	}

	resp, err := x.backend.GetJob(ctx, model.SchedulerJobPath(x.projectID, location, job))
	if err != nil {
		return nil, opError(types.ServiceScheduler, op, err)
	}
	return resp, nil
}

// CreateJob creates a job built by NewPubSubJob or NewHTTPJob
func (x *Scheduler) CreateJob(ctx context.Context, location types.GoogleLocation, job *model.SchedulerJob) (*model.SchedulerJob, error) {
	const op = "CreateJob"
	if location == "" || job == nil || job.Name == "" {
		return nil, invalidInput(types.ServiceScheduler, op, "location and job name are required")
	}
	if (job.PubSubTarget == nil) == (job.HTTPTarget == nil) {
		return nil, invalidInput(types.ServiceScheduler, op, "exactly one target is required", goerr.V("job", job.Name))
	}

	created, err := x.backend.CreateJob(ctx, model.SchedulerLocationPath(x.projectID, location), job)
	if err != nil {
		return nil, opError(types.ServiceScheduler, op, err)
	}

	utils.CtxLogger(ctx).Info("scheduler job created", "job", created.Name, "schedule", created.Schedule)
	return created, nil
}

// UpdateJob overwrites the schedule, description, time zone and target of the job
func (x *Scheduler) UpdateJob(ctx context.Context, job *model.SchedulerJob) (*model.SchedulerJob, error) {
	const op = "UpdateJob"
	if job == nil || job.Name == "" {
		return nil, invalidInput(types.ServiceScheduler, op, "job name is required")
	}

	updated, err := x.backend.UpdateJob(ctx, job)
	if err != nil {
		return nil, opError(types.ServiceScheduler, op, err)
	}
	return updated, nil
}

func (x *Scheduler) DeleteJob(ctx context.Context, location types.GoogleLocation, job types.SchedulerJobID) error {
	const op = "DeleteJob"
	if err := x.validJob(op, location, job); err != nil {
		return err
	}

	if err := x.backend.DeleteJob(ctx, model.SchedulerJobPath(x.projectID, location, job)); err != nil {
		return opError(types.ServiceScheduler, op, err)
	}
	return nil
}

func (x *Scheduler) PauseJob(ctx context.Context, location types.GoogleLocation, job types.SchedulerJobID) (*model.SchedulerJob, error) {
	const op = "PauseJob"
	if err := x.validJob(op, location, job); err != nil {
		return nil, err
	}

	resp, err := x.backend.PauseJob(ctx, model.SchedulerJobPath(x.projectID, location, job))
	if err != nil {
		return nil, opError(types.ServiceScheduler, op, err)
	}
	return resp, nil
}

func (x *Scheduler) ResumeJob(ctx context.Context, location types.GoogleLocation, job types.SchedulerJobID) (*model.SchedulerJob, error) {
	const op = "ResumeJob"
	if err := x.validJob(op, location, job); err != nil {
		return nil, err
	}

	resp, err := x.backend.ResumeJob(ctx, model.SchedulerJobPath(x.projectID, location, job))
	if err != nil {
		return nil, opError(types.ServiceScheduler, op, err)
	}
	return resp, nil
}

// RunJob triggers the job immediately regardless of its schedule
func (x *Scheduler) RunJob(ctx context.Context, location types.GoogleLocation, job types.SchedulerJobID) (*model.SchedulerJob, error) {
	const op = "RunJob"
	if err := x.validJob(op, location, job); err != nil {
		return nil, err
	}

	resp, err := x.backend.RunJob(ctx, model.SchedulerJobPath(x.projectID, location, job))
	if err != nil {
		return nil, opError(types.ServiceScheduler, op, err)
	}
	return resp, nil
}

func (x *Scheduler) Close() error {
	return x.backend.Close()
}
