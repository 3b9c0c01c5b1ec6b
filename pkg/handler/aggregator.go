package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra"
	"github.com/secmon-lab/gcu/pkg/infra/credential"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// Aggregator builds one handler per service on first access and keeps it until Reset or Close. It is safe for concurrent use.
type Aggregator struct {
	descriptors    map[types.Service]model.CredentialDescriptor
	projectID      types.GoogleProjectID
	secretFallback bool
	adcFallback    bool
	factories      *infra.Factories
	resolverOpts   []credential.Option
	logger         *slog.Logger
	resolver       *credential.Resolver

	bigQuery      lazy[*BigQuery]
	storage       lazy[*Storage]
	tasks         lazy[*Tasks]
	scheduler     lazy[*Scheduler]
	secretManager lazy[*SecretManager]
	pubSub        lazy[*PubSub]
	datastore     lazy[*Datastore]
	firestore     lazy[*Firestore]
}

type Option func(*Aggregator)

// WithDescriptor replaces the credential descriptor of desc.Service
func WithDescriptor(desc model.CredentialDescriptor) Option {
	return func(x *Aggregator) {
		x.descriptors[desc.Service] = desc
	}
}

// WithProjectID overrides the project ID of every resolved credential
func WithProjectID(projectID types.GoogleProjectID) Option {
	return func(x *Aggregator) {
		x.projectID = projectID
	}
}

// WithSecretFallback lets services read their service account JSON from Secret Manager when env and file sources are absent
func WithSecretFallback() Option {
	return func(x *Aggregator) {
		x.secretFallback = true
	}
}

// WithADCFallback tries Application Default Credentials after every other source
func WithADCFallback() Option {
	return func(x *Aggregator) {
		x.adcFallback = true
	}
}

// WithFactories replaces the backend factories, e.g. with clients that already exist or with mocks
func WithFactories(f *infra.Factories) Option {
	return func(x *Aggregator) {
		x.factories = f
	}
}

func WithResolverOptions(options ...credential.Option) Option {
	return func(x *Aggregator) {
		x.resolverOpts = append(x.resolverOpts, options...)
	}
}

// WithLogger sets the logger used while constructing handlers
func WithLogger(logger *slog.Logger) Option {
	return func(x *Aggregator) {
		x.logger = logger
	}
}

func New(options ...Option) (*Aggregator, error) {
	x := &Aggregator{
		descriptors: model.DefaultDescriptors(),
	}
	for _, opt := range options {
		opt(x)
	}

	if x.factories == nil {
		x.factories = infra.New()
	}

	for svc, desc := range x.descriptors {
		if !svc.Valid() || desc.Service != svc {
			return nil, goerr.Wrap(types.ErrInvalidOption, "invalid service of credential descriptor", goerr.V("service", svc))
		}
	}
	if x.descriptors[types.ServiceSecretManager].Has(model.SourceSecret) {
		return nil, goerr.Wrap(types.ErrInvalidOption, "secret manager credentials can not be read from secret manager")
	}

	fetcher := credential.SecretFetcherFunc(func(ctx context.Context, id types.SecretID) ([]byte, error) {
		sm, err := x.SecretManager(ctx)
		if err != nil {
			return nil, err
		}
		return sm.GetSecret(ctx, id)
	})

	resolverOpts := []credential.Option{
		credential.WithSecretFetcher(fetcher),
		credential.WithProjectID(x.projectID),
	}
	x.resolver = credential.New(append(resolverOpts, x.resolverOpts...)...)

	return x, nil
}

// Descriptor returns the credential descriptor actually used for the service, including enabled fallbacks. A service on a local backend has only a local source.
func (x *Aggregator) Descriptor(svc types.Service) model.CredentialDescriptor {
	if x.factories != nil && x.factories.Local(svc) {
		return model.CredentialDescriptor{Service: svc, Sources: []model.CredentialSource{model.LocalSource()}}
	}

	desc, ok := x.descriptors[svc]
	if !ok {
		desc = model.CredentialDescriptor{Service: svc}
	}

	if x.secretFallback && svc != types.ServiceSecretManager && desc.FallbackSecret != "" && !desc.Has(model.SourceSecret) {
		desc = desc.With(model.SecretSource(desc.FallbackSecret.String()))
	}
	if x.adcFallback && !desc.Has(model.SourceADC) {
		desc = desc.With(model.ADCSource())
	}
	return desc
}

func (x *Aggregator) context(ctx context.Context) context.Context {
	if x.logger != nil {
		return utils.CtxWithLogger(ctx, x.logger)
	}
	return ctx
}

// construct resolves credentials of svc and builds a handler on the backend made by factory
func construct[B, H any](ctx context.Context, x *Aggregator, svc types.Service, factory infra.Factory[B], wrap func(B, *model.Credential) H) (H, error) {
	var zero H
	ctx = x.context(ctx)

	cred, err := x.resolver.Resolve(ctx, x.Descriptor(svc))
	if err != nil {
		return zero, err
	}

	backend, err := factory(ctx, cred)
	if err != nil {
		return zero, &types.ServiceInitError{Service: svc, Err: err}
	}

	utils.CtxLogger(ctx).Info("service handler constructed",
		"service", svc,
		"source", cred.Source.String(),
		"projectID", cred.ProjectID,
	)
	return wrap(backend, cred), nil
}

func (x *Aggregator) BigQuery(ctx context.Context) (*BigQuery, error) {
	return x.bigQuery.get(func() (*BigQuery, error) {
		return construct(ctx, x, types.ServiceBigQuery, x.factories.BigQuery(),
			func(b interfaces.BigQuery, cred *model.Credential) *BigQuery { return NewBigQuery(b, cred.ProjectID) })
	})
}

func (x *Aggregator) Storage(ctx context.Context) (*Storage, error) {
	return x.storage.get(func() (*Storage, error) {
		return construct(ctx, x, types.ServiceStorage, x.factories.CloudStorage(), NewStorage)
	})
}

func (x *Aggregator) Tasks(ctx context.Context) (*Tasks, error) {
	return x.tasks.get(func() (*Tasks, error) {
		return construct(ctx, x, types.ServiceTasks, x.factories.Tasks(),
			func(b interfaces.Tasks, cred *model.Credential) *Tasks { return NewTasks(b, cred.ProjectID) })
	})
}

func (x *Aggregator) Scheduler(ctx context.Context) (*Scheduler, error) {
	return x.scheduler.get(func() (*Scheduler, error) {
		return construct(ctx, x, types.ServiceScheduler, x.factories.Scheduler(),
			func(b interfaces.Scheduler, cred *model.Credential) *Scheduler { return NewScheduler(b, cred.ProjectID) })
	})
}

func (x *Aggregator) SecretManager(ctx context.Context) (*SecretManager, error) {
	return x.secretManager.get(func() (*SecretManager, error) {
		return construct(ctx, x, types.ServiceSecretManager, x.factories.SecretManager(),
			func(b interfaces.SecretManager, cred *model.Credential) *SecretManager {
				return NewSecretManager(b, cred.ProjectID)
			})
	})
}

func (x *Aggregator) PubSub(ctx context.Context) (*PubSub, error) {
	return x.pubSub.get(func() (*PubSub, error) {
		return construct(ctx, x, types.ServicePubSub, x.factories.PubSub(),
			func(b interfaces.PubSub, cred *model.Credential) *PubSub { return NewPubSub(b, cred.ProjectID) })
	})
}

func (x *Aggregator) Datastore(ctx context.Context) (*Datastore, error) {
	return x.datastore.get(func() (*Datastore, error) {
		return construct(ctx, x, types.ServiceDatastore, x.factories.Datastore(),
			func(b interfaces.Datastore, cred *model.Credential) *Datastore { return NewDatastore(b, cred.ProjectID) })
	})
}

func (x *Aggregator) Firestore(ctx context.Context) (*Firestore, error) {
	return x.firestore.get(func() (*Firestore, error) {
		return construct(ctx, x, types.ServiceFirestore, x.factories.Firestore(),
			func(b interfaces.Firestore, cred *model.Credential) *Firestore { return NewFirestore(b, cred.ProjectID) })
	})
}

// Open returns the handler of svc through its accessor
func (x *Aggregator) Open(ctx context.Context, svc types.Service) (io.Closer, error) {
	switch svc {
	case types.ServiceBigQuery:
		return open(x.BigQuery(ctx))
	case types.ServiceStorage:
		return open(x.Storage(ctx))
	case types.ServiceTasks:
		return open(x.Tasks(ctx))
	case types.ServiceScheduler:
		return open(x.Scheduler(ctx))
	case types.ServiceSecretManager:
		return open(x.SecretManager(ctx))
	case types.ServicePubSub:
		return open(x.PubSub(ctx))
	case types.ServiceDatastore:
		return open(x.Datastore(ctx))
	case types.ServiceFirestore:
		return open(x.Firestore(ctx))
	default:
		return nil, goerr.Wrap(types.ErrInvalidOption, "unknown service", goerr.V("service", svc))
	}
}

func open[H io.Closer](h H, err error) (io.Closer, error) {
	if err != nil {
		return nil, err
	}
	return h, nil
}

func resetHandler[T io.Closer](l *lazy[T]) error {
	v, ok := l.reset()
	if !ok {
		return nil
	}
	return v.Close()
}

// Reset closes and forgets the handler of svc. The next access resolves credentials again.
func (x *Aggregator) Reset(svc types.Service) error {
	var err error
	switch svc {
	case types.ServiceBigQuery:
		err = resetHandler(&x.bigQuery)
	case types.ServiceStorage:
		err = resetHandler(&x.storage)
	case types.ServiceTasks:
		err = resetHandler(&x.tasks)
	case types.ServiceScheduler:
		err = resetHandler(&x.scheduler)
	case types.ServiceSecretManager:
		err = resetHandler(&x.secretManager)
	case types.ServicePubSub:
		err = resetHandler(&x.pubSub)
	case types.ServiceDatastore:
		err = resetHandler(&x.datastore)
	case types.ServiceFirestore:
		err = resetHandler(&x.firestore)
	default:
		return goerr.Wrap(types.ErrInvalidOption, "unknown service", goerr.V("service", svc))
	}

	if err != nil {
		return goerr.Wrap(err, "failed to close handler", goerr.V("service", svc))
	}
	return nil
}

// Close closes every constructed handler. Handlers are forgotten even if closing fails.
func (x *Aggregator) Close() error {
	var result *multierror.Error
	for _, svc := range types.Services() {
		if err := x.Reset(svc); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
