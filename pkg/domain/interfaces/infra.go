package interfaces

import (
	"context"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/datastore"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// The interfaces below are the boundary to the vendor SDKs. Implementations live in pkg/infra and must not retry or cache.

type BigQuery interface {
	Query(ctx context.Context, query string, opts *model.QueryOptions) (*model.QueryResult, error)
	ReadTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) ([]model.Row, error)

	// GetMetadata returns nil without error if the table does not exist
	GetMetadata(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error)
	UpdateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error
	CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error
	EnsureDataset(ctx context.Context, dataset types.BQDatasetID) error
	Load(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, schema bigquery.Schema, records []map[string]any, disposition model.WriteDisposition) (types.BQJobID, error)

	Close() error
}

type CloudStorage interface {
	Write(ctx context.Context, obj model.CloudStorageObject, data []byte, contentType string) error
	// Read returns an error wrapping types.ErrNotFound if the object does not exist
	Read(ctx context.Context, obj model.CloudStorageObject) ([]byte, error)
	// Attrs returns an error wrapping types.ErrNotFound if the object does not exist
	Attrs(ctx context.Context, obj model.CloudStorageObject) (*model.ObjectInfo, error)
	Copy(ctx context.Context, src, dst model.CloudStorageObject) error
	Delete(ctx context.Context, obj model.CloudStorageObject) error
	List(ctx context.Context, bucket types.CSBucket, prefix string) ([]*model.ObjectInfo, error)
	SignedURL(ctx context.Context, obj model.CloudStorageObject, req *model.SignedURLRequest) (string, error)

	BucketExists(ctx context.Context, bucket types.CSBucket) (bool, error)
	CreateBucket(ctx context.Context, projectID types.GoogleProjectID, bucket types.CSBucket) error

	Close() error
}

type PubSub interface {
	// CreateTopic returns an error wrapping types.ErrAlreadyExists if the topic exists
	CreateTopic(ctx context.Context, topic types.PubSubTopicID) error
	// CreateSubscription returns an error wrapping types.ErrAlreadyExists if the subscription exists
	CreateSubscription(ctx context.Context, sub types.PubSubSubscriptionID, cfg model.SubscriptionConfig) error
	Publish(ctx context.Context, topic types.PubSubTopicID, data []byte, attrs map[string]string) (types.PubSubMessageID, error)
	Pull(ctx context.Context, sub types.PubSubSubscriptionID, maxMessages int) ([]*model.ReceivedMessage, error)
	Acknowledge(ctx context.Context, sub types.PubSubSubscriptionID, ackIDs []string) error

	Close() error
}

type SecretManager interface {
	// AccessSecretVersion takes a fully qualified version name, projects/{p}/secrets/{s}/versions/{v}
	AccessSecretVersion(ctx context.Context, name string) ([]byte, error)

	Close() error
}

type Datastore interface {
	// Get returns nil without error if the entity does not exist
	Get(ctx context.Context, kind types.Collection, id types.DocumentID) (model.Document, error)
	Put(ctx context.Context, kind types.Collection, id types.DocumentID, doc model.Document) error
	Delete(ctx context.Context, kind types.Collection, id types.DocumentID) error
	Query(ctx context.Context, kind types.Collection, filters []model.Filter, limit int) ([]model.Document, error)
	Keys(ctx context.Context, kind types.Collection) ([]*datastore.Key, error)
	DeleteMulti(ctx context.Context, keys []*datastore.Key) error

	Close() error
}

type Firestore interface {
	// Get returns nil without error if the document does not exist
	Get(ctx context.Context, collection types.Collection, id types.DocumentID) (model.Document, error)
	Set(ctx context.Context, collection types.Collection, id types.DocumentID, doc model.Document, merge bool) error
	Delete(ctx context.Context, collection types.Collection, id types.DocumentID) error
	Query(ctx context.Context, collection types.Collection, filters []model.Filter, limit int) ([]model.Document, error)

	Close() error
}

type Tasks interface {
	CreateQueue(ctx context.Context, parent, name string) error
	CreateTask(ctx context.Context, queuePath string, spec *model.TaskSpec) (*model.Task, error)
	ListTasks(ctx context.Context, queuePath string) ([]*model.Task, error)

	Close() error
}

type Scheduler interface {
	// ListLocations takes a project path, projects/{project}
	ListLocations(ctx context.Context, project string) ([]*model.SchedulerLocation, error)
	ListJobs(ctx context.Context, parent string) ([]*model.SchedulerJob, error)
	GetJob(ctx context.Context, name string) (*model.SchedulerJob, error)
	CreateJob(ctx context.Context, parent string, job *model.SchedulerJob) (*model.SchedulerJob, error)
	UpdateJob(ctx context.Context, job *model.SchedulerJob) (*model.SchedulerJob, error)
	DeleteJob(ctx context.Context, name string) error
	PauseJob(ctx context.Context, name string) (*model.SchedulerJob, error)
	ResumeJob(ctx context.Context, name string) (*model.SchedulerJob, error)
	RunJob(ctx context.Context, name string) (*model.SchedulerJob, error)

	Close() error
}
