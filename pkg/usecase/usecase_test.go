package usecase_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/infra"
	"github.com/secmon-lab/gcu/pkg/infra/credential"
	"golang.org/x/oauth2/google"
)

// newAggregator builds an aggregator with fake ADC credentials and the given backends
func newAggregator(t *testing.T, options ...infra.Option) *handler.Aggregator {
	t.Helper()
	return gt.R1(handler.New(
		handler.WithADCFallback(),
		handler.WithResolverOptions(
			credential.WithLookupEnv(func(string) (string, bool) { return "", false }),
			credential.WithReadFile(func(string) ([]byte, error) { return nil, fs.ErrNotExist }),
			credential.WithFindDefault(func(ctx context.Context, scopes ...string) (*google.Credentials, error) {
				return &google.Credentials{ProjectID: "test-project"}, nil
			}),
		),
		handler.WithFactories(infra.New(options...)),
	)).NoError(t)
}
