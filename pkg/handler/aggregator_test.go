package handler_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/infra"
	"github.com/secmon-lab/gcu/pkg/infra/bq"
	"github.com/secmon-lab/gcu/pkg/infra/credential"
	"github.com/secmon-lab/gcu/pkg/infra/cs"
	"github.com/secmon-lab/gcu/pkg/infra/secret"
	"github.com/secmon-lab/gcu/pkg/infra/tasks"
	"golang.org/x/oauth2/google"
)

func serviceAccountJSON(t *testing.T, projectID string) []byte {
	key := gt.R1(rsa.GenerateKey(rand.Reader, 2048)).NoError(t)
	der := gt.R1(x509.MarshalPKCS8PrivateKey(key)).NoError(t)

	raw := gt.R1(json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     projectID,
		"private_key_id": "test-key",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"client_email":   "tester@" + projectID + ".iam.gserviceaccount.com",
		"client_id":      "1234567890",
		"token_uri":      "https://oauth2.googleapis.com/token",
	})).NoError(t)
	return raw
}

// noLocalSources makes every env and file source absent
func noLocalSources() handler.Option {
	return handler.WithResolverOptions(
		credential.WithLookupEnv(func(string) (string, bool) { return "", false }),
		credential.WithReadFile(func(string) ([]byte, error) { return nil, fs.ErrNotExist }),
	)
}

func withADC(projectID string) handler.Option {
	return handler.WithResolverOptions(
		credential.WithFindDefault(func(ctx context.Context, scopes ...string) (*google.Credentials, error) {
			return &google.Credentials{ProjectID: projectID}, nil
		}),
	)
}

func TestAggregatorReturnsSameHandler(t *testing.T) {
	ctx := context.Background()
	agg := gt.R1(handler.New(
		noLocalSources(),
		withADC("test-project"),
		handler.WithADCFallback(),
		handler.WithFactories(infra.New(infra.WithBigQuery(infra.Static[interfaces.BigQuery](bq.NewGeneralMock())))),
	)).NoError(t)

	h1 := gt.R1(agg.BigQuery(ctx)).NoError(t)
	h2 := gt.R1(agg.BigQuery(ctx)).NoError(t)
	gt.True(t, h1 == h2)
	gt.Equal(t, h1.ProjectID(), types.GoogleProjectID("test-project"))
}

func TestAggregatorConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	var built atomic.Int32
	factory := func(ctx context.Context, cred *model.Credential) (interfaces.CloudStorage, error) {
		built.Add(1)
		return cs.NewGeneralMock(), nil
	}

	agg := gt.R1(handler.New(
		noLocalSources(),
		withADC("test-project"),
		handler.WithADCFallback(),
		handler.WithFactories(infra.New(infra.WithCloudStorage(factory))),
	)).NoError(t)

	const n = 32
	results := make([]*handler.Storage, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := agg.Storage(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = h
		}()
	}
	wg.Wait()

	gt.Equal(t, built.Load(), int32(1))
	for _, h := range results {
		gt.True(t, h == results[0])
	}
}

func TestAggregatorNoCredentials(t *testing.T) {
	agg := gt.R1(handler.New(noLocalSources())).NoError(t)

	_, err := agg.Storage(context.Background())
	gt.Error(t, err).Is(types.ErrNoCredentials)

	var credErr *types.CredentialsError
	gt.True(t, errors.As(err, &credErr))
	gt.Equal(t, credErr.Service, types.ServiceStorage)
	gt.A(t, credErr.Attempts).Length(2)
}

func TestAggregatorStorageDirNeedsNoCredentials(t *testing.T) {
	ctx := context.Background()
	agg := gt.R1(handler.New(
		noLocalSources(),
		handler.WithProjectID("dev-project"),
		handler.WithFactories(infra.New(infra.WithStorageDir(t.TempDir()))),
	)).NoError(t)

	desc := agg.Descriptor(types.ServiceStorage)
	gt.A(t, desc.Sources).Length(1).At(0, func(t testing.TB, v model.CredentialSource) {
		gt.Equal(t, v.Kind, model.SourceLocal)
	})

	h := gt.R1(agg.Storage(ctx)).NoError(t)
	gt.Equal(t, h.ProjectID(), types.GoogleProjectID("dev-project"))
	gt.NoError(t, h.Upload(ctx, "dev-bucket", "a/b.txt", []byte("hello"), "text/plain"))
	gt.Equal(t, gt.R1(h.Download(ctx, "dev-bucket", "a/b.txt")).NoError(t), []byte("hello"))

	// other services still need credentials
	_, err := agg.BigQuery(ctx)
	gt.Error(t, err).Is(types.ErrNoCredentials)
}

func TestAggregatorFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	factory := func(ctx context.Context, cred *model.Credential) (interfaces.Tasks, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("rejected")
		}
		return tasks.NewMock(), nil
	}

	agg := gt.R1(handler.New(
		noLocalSources(),
		withADC("test-project"),
		handler.WithADCFallback(),
		handler.WithFactories(infra.New(infra.WithTasks(factory))),
	)).NoError(t)

	_, err := agg.Tasks(ctx)
	var initErr *types.ServiceInitError
	gt.True(t, errors.As(err, &initErr))
	gt.Equal(t, initErr.Service, types.ServiceTasks)

	gt.R1(agg.Tasks(ctx)).NoError(t)
	gt.Equal(t, calls.Load(), int32(2))
}

func TestAggregatorEnvCredential(t *testing.T) {
	ctx := context.Background()
	raw := serviceAccountJSON(t, "env-project")

	var got *model.Credential
	factory := func(ctx context.Context, cred *model.Credential) (interfaces.CloudStorage, error) {
		got = cred
		return cs.NewGeneralMock(), nil
	}

	agg := gt.R1(handler.New(
		handler.WithResolverOptions(
			credential.WithLookupEnv(func(key string) (string, bool) {
				if key == "CLOUD_STORAGE_SERVICE_ACCOUNT_JSON" {
					return string(raw), true
				}
				return "", false
			}),
			credential.WithReadFile(func(string) ([]byte, error) { return nil, fs.ErrNotExist }),
		),
		handler.WithFactories(infra.New(infra.WithCloudStorage(factory))),
	)).NoError(t)

	h := gt.R1(agg.Storage(ctx)).NoError(t)
	gt.Equal(t, h.ProjectID(), types.GoogleProjectID("env-project"))
	gt.Equal(t, got.Source, model.EnvSource("CLOUD_STORAGE_SERVICE_ACCOUNT_JSON"))
	gt.Equal(t, got.ClientEmail, "tester@env-project.iam.gserviceaccount.com")
}

func TestAggregatorProjectOverride(t *testing.T) {
	agg := gt.R1(handler.New(
		noLocalSources(),
		withADC("adc-project"),
		handler.WithADCFallback(),
		handler.WithProjectID("override"),
		handler.WithFactories(infra.New(infra.WithBigQuery(infra.Static[interfaces.BigQuery](bq.NewGeneralMock())))),
	)).NoError(t)

	h := gt.R1(agg.BigQuery(context.Background())).NoError(t)
	gt.Equal(t, h.ProjectID(), types.GoogleProjectID("override"))
}

func TestAggregatorSecretFallback(t *testing.T) {
	ctx := context.Background()
	secrets := secret.NewMock(map[string][]byte{
		"projects/sm-project/secrets/bigquery-admin-service-account/versions/latest": serviceAccountJSON(t, "bq-project"),
	})

	agg := gt.R1(handler.New(
		noLocalSources(),
		withADC("sm-project"),
		handler.WithSecretFallback(),
		handler.WithDescriptor(model.CredentialDescriptor{
			Service: types.ServiceSecretManager,
			Sources: []model.CredentialSource{model.ADCSource()},
		}),
		handler.WithFactories(infra.New(
			infra.WithSecretManager(infra.Static[interfaces.SecretManager](secrets)),
			infra.WithBigQuery(infra.Static[interfaces.BigQuery](bq.NewGeneralMock())),
		)),
	)).NoError(t)

	h := gt.R1(agg.BigQuery(ctx)).NoError(t)
	gt.Equal(t, h.ProjectID(), types.GoogleProjectID("bq-project"))
	gt.A(t, secrets.Accessed).Length(1)
}

func TestAggregatorDescriptor(t *testing.T) {
	agg := gt.R1(handler.New(handler.WithSecretFallback(), handler.WithADCFallback())).NoError(t)

	bqDesc := agg.Descriptor(types.ServiceBigQuery)
	gt.A(t, bqDesc.Sources).Length(4).
		At(2, func(t testing.TB, v model.CredentialSource) {
			gt.Equal(t, v, model.SecretSource("bigquery-admin-service-account"))
		}).
		At(3, func(t testing.TB, v model.CredentialSource) {
			gt.Equal(t, v.Kind, model.SourceADC)
		})

	smDesc := agg.Descriptor(types.ServiceSecretManager)
	gt.False(t, smDesc.Has(model.SourceSecret))
	gt.True(t, smDesc.Has(model.SourceADC))
}

func TestAggregatorRejectsSecretManagerSecretSource(t *testing.T) {
	_, err := handler.New(handler.WithDescriptor(model.CredentialDescriptor{
		Service: types.ServiceSecretManager,
		Sources: []model.CredentialSource{model.SecretSource("sm-key")},
	}))
	gt.Error(t, err).Is(types.ErrInvalidOption)
}

type failingTasks struct {
	*tasks.Mock
}

func (x *failingTasks) Close() error { return errors.New("close failed") }

func TestAggregatorResetAndClose(t *testing.T) {
	ctx := context.Background()
	var built atomic.Int32
	bqMock := bq.NewGeneralMock()

	agg := gt.R1(handler.New(
		noLocalSources(),
		withADC("test-project"),
		handler.WithADCFallback(),
		handler.WithFactories(infra.New(
			infra.WithBigQuery(func(ctx context.Context, cred *model.Credential) (interfaces.BigQuery, error) {
				built.Add(1)
				return bqMock, nil
			}),
			infra.WithTasks(infra.Static[interfaces.Tasks](&failingTasks{Mock: tasks.NewMock()})),
		)),
	)).NoError(t)

	h1 := gt.R1(agg.BigQuery(ctx)).NoError(t)
	gt.NoError(t, agg.Reset(types.ServiceBigQuery))
	gt.True(t, bqMock.Closed)

	h2 := gt.R1(agg.BigQuery(ctx)).NoError(t)
	gt.False(t, h1 == h2)
	gt.Equal(t, built.Load(), int32(2))

	gt.R1(agg.Tasks(ctx)).NoError(t)
	err := agg.Close()
	gt.V(t, err).NotNil()

	// handlers are forgotten even when closing failed
	gt.R1(agg.Tasks(ctx)).NoError(t)
	gt.NoError(t, agg.Reset(types.ServiceStorage))
}

func TestAggregatorOpen(t *testing.T) {
	agg := gt.R1(handler.New(
		noLocalSources(),
		withADC("test-project"),
		handler.WithADCFallback(),
		handler.WithFactories(infra.New(infra.WithFirestore(infra.Static[interfaces.Firestore](nil)))),
	)).NoError(t)

	_, err := agg.Open(context.Background(), types.Service("unknown"))
	gt.Error(t, err).Is(types.ErrInvalidOption)

	c := gt.R1(agg.Open(context.Background(), types.ServiceFirestore)).NoError(t)
	gt.V(t, c).NotNil()
}
