package scheduler

import (
	"context"
	"strings"

	scheduler "cloud.google.com/go/scheduler/apiv1"
	"cloud.google.com/go/scheduler/apiv1/schedulerpb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/apierr"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	locationpb "google.golang.org/genproto/googleapis/cloud/location"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

type Client struct {
	client *scheduler.CloudSchedulerClient
}

var _ interfaces.Scheduler = &Client{}

func New(ctx context.Context, options ...option.ClientOption) (*Client, error) {
	client, err := scheduler.NewCloudSchedulerClient(ctx, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create cloud scheduler client")
	}
	return &Client{client: client}, nil
}

func wrapJobErr(err error, msg, name string) error {
	if apierr.IsNotFound(err) {
		return goerr.Wrap(types.ErrNotFound, "job not found", goerr.V("job", name))
	}
	if apierr.IsAlreadyExists(err) {
		return goerr.Wrap(types.ErrAlreadyExists, "job already exists", goerr.V("job", name))
	}
	return goerr.Wrap(err, msg, goerr.V("job", name))
}

func (x *Client) ListLocations(ctx context.Context, project string) ([]*model.SchedulerLocation, error) {
	it := x.client.ListLocations(ctx, &locationpb.ListLocationsRequest{Name: project})

	var locations []*model.SchedulerLocation
	for {
		loc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list locations", goerr.V("project", project))
		}
		locations = append(locations, &model.SchedulerLocation{
			ID:          types.GoogleLocation(loc.GetLocationId()),
			Name:        loc.GetName(),
			DisplayName: loc.GetDisplayName(),
			Labels:      loc.GetLabels(),
		})
	}
	return locations, nil
}

func (x *Client) ListJobs(ctx context.Context, parent string) ([]*model.SchedulerJob, error) {
	it := x.client.ListJobs(ctx, &schedulerpb.ListJobsRequest{Parent: parent})

	var jobs []*model.SchedulerJob
	for {
		job, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list jobs", goerr.V("parent", parent))
		}
		jobs = append(jobs, toJob(job))
	}
	return jobs, nil
}

func (x *Client) GetJob(ctx context.Context, name string) (*model.SchedulerJob, error) {
	job, err := x.client.GetJob(ctx, &schedulerpb.GetJobRequest{Name: name})
	if err != nil {
		return nil, wrapJobErr(err, "failed to get job", name)
	}
	return toJob(job), nil
}

func (x *Client) CreateJob(ctx context.Context, parent string, job *model.SchedulerJob) (*model.SchedulerJob, error) {
	created, err := x.client.CreateJob(ctx, &schedulerpb.CreateJobRequest{
		Parent: parent,
		Job:    toProto(job),
	})
	if err != nil {
		return nil, wrapJobErr(err, "failed to create job", job.Name)
	}
	return toJob(created), nil
}

// UpdateJob replaces the fields that are set in job
func (x *Client) UpdateJob(ctx context.Context, job *model.SchedulerJob) (*model.SchedulerJob, error) {
	updated, err := x.client.UpdateJob(ctx, &schedulerpb.UpdateJobRequest{
		Job:        toProto(job),
		UpdateMask: updateMask(job),
	})
	if err != nil {
		return nil, wrapJobErr(err, "failed to update job", job.Name)
	}
	return toJob(updated), nil
}

func (x *Client) DeleteJob(ctx context.Context, name string) error {
	if err := x.client.DeleteJob(ctx, &schedulerpb.DeleteJobRequest{Name: name}); err != nil {
		return wrapJobErr(err, "failed to delete job", name)
	}
	return nil
}

func (x *Client) PauseJob(ctx context.Context, name string) (*model.SchedulerJob, error) {
	job, err := x.client.PauseJob(ctx, &schedulerpb.PauseJobRequest{Name: name})
	if err != nil {
		return nil, wrapJobErr(err, "failed to pause job", name)
	}
	return toJob(job), nil
}

func (x *Client) ResumeJob(ctx context.Context, name string) (*model.SchedulerJob, error) {
	job, err := x.client.ResumeJob(ctx, &schedulerpb.ResumeJobRequest{Name: name})
	if err != nil {
		return nil, wrapJobErr(err, "failed to resume job", name)
	}
	return toJob(job), nil
}

func (x *Client) RunJob(ctx context.Context, name string) (*model.SchedulerJob, error) {
	job, err := x.client.RunJob(ctx, &schedulerpb.RunJobRequest{Name: name})
	if err != nil {
		return nil, wrapJobErr(err, "failed to run job", name)
	}
	return toJob(job), nil
}

func (x *Client) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close cloud scheduler client")
	}
	return nil
}

func updateMask(job *model.SchedulerJob) *fieldmaskpb.FieldMask {
	var paths []string
	if job.Description != "" {
		paths = append(paths, "description")
	}
	if job.Schedule != "" {
		paths = append(paths, "schedule")
	}
	if job.TimeZone != "" {
		paths = append(paths, "time_zone")
	}
	if job.PubSubTarget != nil {
		paths = append(paths, "pubsub_target")
	}
	if job.HTTPTarget != nil {
		paths = append(paths, "http_target")
	}
	return &fieldmaskpb.FieldMask{Paths: paths}
}

func toProto(job *model.SchedulerJob) *schedulerpb.Job {
	pb := &schedulerpb.Job{
		Name:        job.Name,
		Description: job.Description,
		Schedule:    job.Schedule,
		TimeZone:    job.TimeZone,
	}

	switch {
	case job.PubSubTarget != nil:
		pb.Target = &schedulerpb.Job_PubsubTarget{
			PubsubTarget: &schedulerpb.PubsubTarget{
				TopicName:  job.PubSubTarget.TopicName,
				Data:       job.PubSubTarget.Data,
				Attributes: job.PubSubTarget.Attributes,
			},
		}
	case job.HTTPTarget != nil:
		method := schedulerpb.HttpMethod_POST
		if v, ok := schedulerpb.HttpMethod_value[strings.ToUpper(job.HTTPTarget.Method)]; ok {
			method = schedulerpb.HttpMethod(v)
		}
		pb.Target = &schedulerpb.Job_HttpTarget{
			HttpTarget: &schedulerpb.HttpTarget{
				Uri:        job.HTTPTarget.URI,
				HttpMethod: method,
				Headers:    job.HTTPTarget.Headers,
				Body:       job.HTTPTarget.Body,
			},
		}
	}

	return pb
}

func toJob(pb *schedulerpb.Job) *model.SchedulerJob {
	job := &model.SchedulerJob{
		Name:        pb.GetName(),
		Description: pb.GetDescription(),
		Schedule:    pb.GetSchedule(),
		TimeZone:    pb.GetTimeZone(),
		State:       pb.GetState().String(),
	}

	if t := pb.GetPubsubTarget(); t != nil {
		job.PubSubTarget = &model.PubSubTarget{
			TopicName:  t.GetTopicName(),
			Data:       t.GetData(),
			Attributes: t.GetAttributes(),
		}
	}
	if t := pb.GetHttpTarget(); t != nil {
		job.HTTPTarget = &model.HTTPTarget{
			URI:     t.GetUri(),
			Method:  t.GetHttpMethod().String(),
			Headers: t.GetHeaders(),
			Body:    t.GetBody(),
		}
	}

	return job
}
