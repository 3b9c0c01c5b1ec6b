package infra

import (
	"context"

	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/bq"
	"github.com/secmon-lab/gcu/pkg/infra/credential"
	"github.com/secmon-lab/gcu/pkg/infra/cs"
	"github.com/secmon-lab/gcu/pkg/infra/datastore"
	"github.com/secmon-lab/gcu/pkg/infra/dump"
	"github.com/secmon-lab/gcu/pkg/infra/firestore"
	"github.com/secmon-lab/gcu/pkg/infra/pubsub"
	"github.com/secmon-lab/gcu/pkg/infra/scheduler"
	"github.com/secmon-lab/gcu/pkg/infra/secret"
	"github.com/secmon-lab/gcu/pkg/infra/tasks"
)

// Factory builds a backend client from a resolved credential
type Factory[T any] func(ctx context.Context, cred *model.Credential) (T, error)

// Factories holds one backend factory per service. The defaults build SDK clients with the credential.
type Factories struct {
	bq            Factory[interfaces.BigQuery]
	cs            Factory[interfaces.CloudStorage]
	tasks         Factory[interfaces.Tasks]
	scheduler     Factory[interfaces.Scheduler]
	secretManager Factory[interfaces.SecretManager]
	pubsub        Factory[interfaces.PubSub]
	datastore     Factory[interfaces.Datastore]
	firestore     Factory[interfaces.Firestore]

	firestoreDatabaseID string
	datastoreDatabaseID string
	datastoreNamespace  string

	// local services are served by backends that need no credential
	local map[types.Service]bool
}

func New(options ...Option) *Factories {
	f := &Factories{local: map[types.Service]bool{}}
	f.bq = func(ctx context.Context, cred *model.Credential) (interfaces.BigQuery, error) {
		return bq.New(ctx, cred.ProjectID, credential.ClientOptions(cred)...)
	}
	f.cs = func(ctx context.Context, cred *model.Credential) (interfaces.CloudStorage, error) {
		return cs.New(ctx, credential.ClientOptions(cred)...)
	}
	f.tasks = func(ctx context.Context, cred *model.Credential) (interfaces.Tasks, error) {
		return tasks.New(ctx, credential.ClientOptions(cred)...)
	}
	f.scheduler = func(ctx context.Context, cred *model.Credential) (interfaces.Scheduler, error) {
		return scheduler.New(ctx, credential.ClientOptions(cred)...)
	}
	f.secretManager = func(ctx context.Context, cred *model.Credential) (interfaces.SecretManager, error) {
		return secret.New(ctx, credential.ClientOptions(cred)...)
	}
	f.pubsub = func(ctx context.Context, cred *model.Credential) (interfaces.PubSub, error) {
		return pubsub.New(ctx, cred.ProjectID, credential.ClientOptions(cred)...)
	}
	f.datastore = func(ctx context.Context, cred *model.Credential) (interfaces.Datastore, error) {
		return datastore.New(ctx, cred.ProjectID, f.datastoreDatabaseID, credential.ClientOptions(cred),
			datastore.WithNamespace(f.datastoreNamespace),
		)
	}
	f.firestore = func(ctx context.Context, cred *model.Credential) (interfaces.Firestore, error) {
		return firestore.New(ctx, cred.ProjectID, f.firestoreDatabaseID, credential.ClientOptions(cred)...)
	}

	for _, option := range options {
		option(f)
	}

	return f
}

// Local reports whether the backend of svc works without a credential
func (x *Factories) Local(svc types.Service) bool { return x.local[svc] }

func (x *Factories) BigQuery() Factory[interfaces.BigQuery]           { return x.bq }
func (x *Factories) CloudStorage() Factory[interfaces.CloudStorage]   { return x.cs }
func (x *Factories) Tasks() Factory[interfaces.Tasks]                 { return x.tasks }
func (x *Factories) Scheduler() Factory[interfaces.Scheduler]         { return x.scheduler }
func (x *Factories) SecretManager() Factory[interfaces.SecretManager] { return x.secretManager }
func (x *Factories) PubSub() Factory[interfaces.PubSub]               { return x.pubsub }
func (x *Factories) Datastore() Factory[interfaces.Datastore]         { return x.datastore }
func (x *Factories) Firestore() Factory[interfaces.Firestore]         { return x.firestore }

type Option func(*Factories)

func WithBigQuery(f Factory[interfaces.BigQuery]) Option {
	return func(c *Factories) {
		c.bq = f
	}
}

func WithCloudStorage(f Factory[interfaces.CloudStorage]) Option {
	return func(c *Factories) {
		c.cs = f
		delete(c.local, types.ServiceStorage)
	}
}

func WithTasks(f Factory[interfaces.Tasks]) Option {
	return func(c *Factories) {
		c.tasks = f
	}
}

func WithScheduler(f Factory[interfaces.Scheduler]) Option {
	return func(c *Factories) {
		c.scheduler = f
	}
}

func WithSecretManager(f Factory[interfaces.SecretManager]) Option {
	return func(c *Factories) {
		c.secretManager = f
	}
}

func WithPubSub(f Factory[interfaces.PubSub]) Option {
	return func(c *Factories) {
		c.pubsub = f
	}
}

func WithDatastore(f Factory[interfaces.Datastore]) Option {
	return func(c *Factories) {
		c.datastore = f
	}
}

func WithFirestore(f Factory[interfaces.Firestore]) Option {
	return func(c *Factories) {
		c.firestore = f
	}
}

// WithStorageDir replaces Cloud Storage with a directory on the local filesystem
func WithStorageDir(dir string) Option {
	return func(c *Factories) {
		c.cs = func(ctx context.Context, cred *model.Credential) (interfaces.CloudStorage, error) {
			return dump.New(dir), nil
		}
		c.local[types.ServiceStorage] = true
	}
}

func WithFirestoreDatabase(databaseID string) Option {
	return func(c *Factories) {
		c.firestoreDatabaseID = databaseID
	}
}

func WithDatastoreDatabase(databaseID string) Option {
	return func(c *Factories) {
		c.datastoreDatabaseID = databaseID
	}
}

func WithDatastoreNamespace(ns string) Option {
	return func(c *Factories) {
		c.datastoreNamespace = ns
	}
}

// Static returns a factory that always yields the given client
func Static[T any](client T) Factory[T] {
	return func(ctx context.Context, cred *model.Credential) (T, error) {
		return client, nil
	}
}
