package types

import (
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// AppVersion is overwritten by ldflags at release build
var AppVersion = "dev"

// RequestID is a unique identifier for each request
type RequestID string

func NewRequestID() RequestID      { return RequestID(uuid.NewString()) }
func (x RequestID) Empty() bool    { return x == "" }
func (x RequestID) String() string { return string(x) }

// Service identifies one Google Cloud service wrapped by a handler
type Service string

const (
	ServiceBigQuery      Service = "bigquery"
	ServiceStorage       Service = "storage"
	ServiceTasks         Service = "tasks"
	ServiceScheduler     Service = "scheduler"
	ServiceSecretManager Service = "secretmanager"
	ServicePubSub        Service = "pubsub"
	ServiceDatastore     Service = "datastore"
	ServiceFirestore     Service = "firestore"
)

// Services returns all supported services in a stable order. Secret Manager comes first because other services may resolve credentials through it.
func Services() []Service {
	return []Service{
		ServiceSecretManager,
		ServiceBigQuery,
		ServiceStorage,
		ServiceTasks,
		ServiceScheduler,
		ServicePubSub,
		ServiceDatastore,
		ServiceFirestore,
	}
}

func (x Service) String() string { return string(x) }

func (x Service) Valid() bool {
	for _, s := range Services() {
		if s == x {
			return true
		}
	}
	return false
}

// Google Cloud Platform
type GoogleProjectID string
type GoogleLocation string

func (x GoogleProjectID) String() string { return string(x) }
func (x GoogleLocation) String() string  { return string(x) }

type BQDatasetID string
type BQTableID string
type BQJobID string

func (x BQDatasetID) String() string { return string(x) }
func (x BQTableID) String() string   { return string(x) }
func (x BQJobID) String() string     { return string(x) }

type CSBucket string
type CSObjectID string
type CSUrl string

func (x CSBucket) String() string   { return string(x) }
func (x CSObjectID) String() string { return string(x) }
func (x CSUrl) String() string      { return string(x) }

func (x CSUrl) Parse() (CSBucket, CSObjectID, error) {
	// convert gs://bucket/object to (bucket, object)

	if !strings.HasPrefix(string(x), "gs://") {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl has invalid prefix", goerr.V("url", x))
	}

	parts := strings.Split(string(x), "/")
	if len(parts) < 4 {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl is invalid", goerr.V("url", x))
	}

	if parts[0] != "gs:" || parts[1] != "" {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl is invalid", goerr.V("url", x))
	}

	if parts[2] == "" {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl has empty bucket", goerr.V("url", x))
	}

	bucket := CSBucket(parts[2])
	object := CSObjectID(strings.Join(parts[3:], "/"))

	return bucket, object, nil
}

// ParsePrefix converts gs://bucket or gs://bucket/prefix to (bucket, prefix)
func (x CSUrl) ParsePrefix() (CSBucket, string, error) {
	s, ok := strings.CutPrefix(string(x), "gs://")
	if !ok {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl has invalid prefix", goerr.V("url", x))
	}

	bucket, prefix, _ := strings.Cut(s, "/")
	if bucket == "" {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl has empty bucket", goerr.V("url", x))
	}
	return CSBucket(bucket), prefix, nil
}

type PubSubTopicID string
type PubSubSubscriptionID string
type PubSubMessageID string

func (x PubSubTopicID) String() string        { return string(x) }
func (x PubSubSubscriptionID) String() string { return string(x) }
func (x PubSubMessageID) String() string      { return string(x) }

type SecretID string

func (x SecretID) String() string { return string(x) }

type TaskQueueID string
type TaskName string

func (x TaskQueueID) String() string { return string(x) }
func (x TaskName) String() string    { return string(x) }

type SchedulerJobID string

func (x SchedulerJobID) String() string { return string(x) }

// Collection is a Firestore collection or a Datastore kind
type Collection string
type DocumentID string

func (x Collection) String() string { return string(x) }
func (x DocumentID) String() string { return string(x) }
