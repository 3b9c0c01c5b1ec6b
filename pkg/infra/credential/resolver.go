package credential

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// CloudPlatformScope is requested for every resolved credential
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// SecretFetcher reads the latest version of a Secret Manager secret
type SecretFetcher interface {
	FetchSecret(ctx context.Context, id types.SecretID) ([]byte, error)
}

type SecretFetcherFunc func(ctx context.Context, id types.SecretID) ([]byte, error)

func (f SecretFetcherFunc) FetchSecret(ctx context.Context, id types.SecretID) ([]byte, error) {
	return f(ctx, id)
}

type Resolver struct {
	lookupEnv   func(key string) (string, bool)
	readFile    func(path string) ([]byte, error)
	findDefault func(ctx context.Context, scopes ...string) (*google.Credentials, error)
	secrets     SecretFetcher
	projectID   types.GoogleProjectID
}

type Option func(*Resolver)

// WithSecretFetcher enables resolution of SourceSecret sources
func WithSecretFetcher(f SecretFetcher) Option {
	return func(r *Resolver) {
		r.secrets = f
	}
}

// WithProjectID overrides the project ID found in credentials
func WithProjectID(id types.GoogleProjectID) Option {
	return func(r *Resolver) {
		r.projectID = id
	}
}

func WithLookupEnv(f func(key string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = f
	}
}

func WithReadFile(f func(path string) ([]byte, error)) Option {
	return func(r *Resolver) {
		r.readFile = f
	}
}

func WithFindDefault(f func(ctx context.Context, scopes ...string) (*google.Credentials, error)) Option {
	return func(r *Resolver) {
		r.findDefault = f
	}
}

func New(options ...Option) *Resolver {
	r := &Resolver{
		lookupEnv: os.LookupEnv,
		readFile: func(path string) ([]byte, error) {
			return os.ReadFile(filepath.Clean(path))
		},
		findDefault: google.FindDefaultCredentials,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Resolve tries the sources of desc in order and returns the first usable credential. If none is usable, it returns *types.CredentialsError.
func (x *Resolver) Resolve(ctx context.Context, desc model.CredentialDescriptor) (*model.Credential, error) {
	var (
		attempts []string
		causes   *multierror.Error
	)

	for _, src := range desc.Sources {
		cred, err := x.resolveSource(ctx, src)
		if err != nil {
			attempts = append(attempts, src.String())
			causes = multierror.Append(causes, err)
			continue
		}
		if cred == nil {
			attempts = append(attempts, src.String())
			continue
		}

		if x.projectID != "" {
			cred.ProjectID = x.projectID
		}
		utils.CtxLogger(ctx).Debug("resolved credential",
			"service", desc.Service,
			"credential", cred,
		)
		return cred, nil
	}

	cause := causes.ErrorOrNil()
	if cause == nil {
		cause = types.ErrNoCredentials
	}
	return nil, &types.CredentialsError{
		Service:  desc.Service,
		Attempts: attempts,
		Err:      cause,
	}
}

// resolveSource returns (nil, nil) when the source is simply absent
func (x *Resolver) resolveSource(ctx context.Context, src model.CredentialSource) (*model.Credential, error) {
	switch src.Kind {
	case model.SourceEnv:
		v, ok := x.lookupEnv(src.Ref)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return Parse(ctx, []byte(v), src)

	case model.SourceFile:
		raw, err := x.readFile(src.Ref)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, goerr.Wrap(err, "failed to read credential file", goerr.V("path", src.Ref))
		}
		return Parse(ctx, raw, src)

	case model.SourceSecret:
		if x.secrets == nil {
			return nil, goerr.Wrap(types.ErrInvalidOption, "secret source is not available", goerr.V("secret", src.Ref))
		}
		raw, err := x.secrets.FetchSecret(ctx, types.SecretID(src.Ref))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch credential secret", goerr.V("secret", src.Ref))
		}
		return Parse(ctx, raw, src)

	case model.SourceADC:
		creds, err := x.findDefault(ctx, CloudPlatformScope)
		if err != nil {
			return nil, goerr.Wrap(err, "application default credentials are not available")
		}
		return &model.Credential{
			Source:    src,
			ProjectID: types.GoogleProjectID(creds.ProjectID),
			Google:    creds,
		}, nil

	case model.SourceLocal:
		return &model.Credential{Source: src}, nil

	default:
		return nil, goerr.Wrap(types.ErrInvalidOption, "unknown credential source kind", goerr.V("kind", src.Kind))
	}
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// Parse validates service account JSON and converts it into a credential
func Parse(ctx context.Context, raw []byte, src model.CredentialSource) (*model.Credential, error) {
	var key serviceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, goerr.Wrap(err, "credential is not valid JSON", goerr.V("source", src.String()))
	}
	if key.Type == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "credential JSON has no type", goerr.V("source", src.String()))
	}

	creds, err := google.CredentialsFromJSON(ctx, raw, CloudPlatformScope)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse credential JSON", goerr.V("source", src.String()))
	}

	projectID := creds.ProjectID
	if projectID == "" {
		projectID = key.ProjectID
	}

	cred := &model.Credential{
		Source:      src,
		ProjectID:   types.GoogleProjectID(projectID),
		ClientEmail: key.ClientEmail,
		Google:      creds,
	}
	if key.PrivateKey != "" {
		cred.PrivateKey = []byte(key.PrivateKey)
	}

	return cred, nil
}

// ClientOptions converts a credential into options for Google Cloud client constructors
func ClientOptions(cred *model.Credential) []option.ClientOption {
	if cred == nil || cred.Google == nil {
		return nil
	}
	return []option.ClientOption{option.WithCredentials(cred.Google)}
}
