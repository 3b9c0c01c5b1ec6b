package tasks

import (
	"context"
	"strings"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/apierr"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type Client struct {
	client *cloudtasks.Client
}

var _ interfaces.Tasks = &Client{}

func New(ctx context.Context, options ...option.ClientOption) (*Client, error) {
	client, err := cloudtasks.NewClient(ctx, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create cloud tasks client")
	}
	return &Client{client: client}, nil
}

// CreateQueue creates parent/queues/name. parent is projects/{project}/locations/{location}.
func (x *Client) CreateQueue(ctx context.Context, parent, name string) error {
	queuePath := parent + "/queues/" + name
	if _, err := x.client.CreateQueue(ctx, &cloudtaskspb.CreateQueueRequest{
		Parent: parent,
		Queue:  &cloudtaskspb.Queue{Name: queuePath},
	}); err != nil {
		if apierr.IsAlreadyExists(err) {
			return goerr.Wrap(types.ErrAlreadyExists, "queue already exists", goerr.V("queue", queuePath))
		}
		return goerr.Wrap(err, "failed to create queue", goerr.V("queue", queuePath))
	}
	return nil
}

func (x *Client) CreateTask(ctx context.Context, queuePath string, spec *model.TaskSpec) (*model.Task, error) {
	req := &cloudtaskspb.HttpRequest{
		Url:        spec.URL,
		HttpMethod: toHTTPMethod(spec.Method),
		Headers:    spec.Headers,
		Body:       spec.Body,
	}
	if spec.ServiceAccountEmail != "" {
		req.AuthorizationHeader = &cloudtaskspb.HttpRequest_OidcToken{
			OidcToken: &cloudtaskspb.OidcToken{ServiceAccountEmail: spec.ServiceAccountEmail},
		}
	}

	task := &cloudtaskspb.Task{
		MessageType: &cloudtaskspb.Task_HttpRequest{HttpRequest: req},
	}
	if !spec.ScheduleTime.IsZero() {
		task.ScheduleTime = timestamppb.New(spec.ScheduleTime)
	}

	created, err := x.client.CreateTask(ctx, &cloudtaskspb.CreateTaskRequest{
		Parent: queuePath,
		Task:   task,
	})
	if err != nil {
		if apierr.IsNotFound(err) {
			return nil, goerr.Wrap(types.ErrNotFound, "queue not found", goerr.V("queue", queuePath))
		}
		return nil, goerr.Wrap(err, "failed to create task", goerr.V("queue", queuePath), goerr.V("url", spec.URL))
	}

	return toTask(created), nil
}

func (x *Client) ListTasks(ctx context.Context, queuePath string) ([]*model.Task, error) {
	it := x.client.ListTasks(ctx, &cloudtaskspb.ListTasksRequest{
		Parent:       queuePath,
		ResponseView: cloudtaskspb.Task_FULL,
	})

	var tasks []*model.Task
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if apierr.IsNotFound(err) {
				return nil, goerr.Wrap(types.ErrNotFound, "queue not found", goerr.V("queue", queuePath))
			}
			return nil, goerr.Wrap(err, "failed to list tasks", goerr.V("queue", queuePath))
		}
		tasks = append(tasks, toTask(t))
	}
	return tasks, nil
}

func (x *Client) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close cloud tasks client")
	}
	return nil
}

func toHTTPMethod(method string) cloudtaskspb.HttpMethod {
	if v, ok := cloudtaskspb.HttpMethod_value[strings.ToUpper(method)]; ok {
		return cloudtaskspb.HttpMethod(v)
	}
	return cloudtaskspb.HttpMethod_POST
}

func toTask(t *cloudtaskspb.Task) *model.Task {
	task := &model.Task{
		Name:          types.TaskName(t.GetName()),
		DispatchCount: t.GetDispatchCount(),
	}
	if req := t.GetHttpRequest(); req != nil {
		task.URL = req.GetUrl()
		task.Method = req.GetHttpMethod().String()
	}
	if ts := t.GetScheduleTime(); ts != nil {
		task.ScheduleTime = ts.AsTime()
	}
	if ts := t.GetCreateTime(); ts != nil {
		task.CreateTime = ts.AsTime()
	}
	return task
}
