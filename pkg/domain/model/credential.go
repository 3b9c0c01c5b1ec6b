package model

import (
	"log/slog"
	"path/filepath"

	"github.com/secmon-lab/gcu/pkg/domain/types"
	"golang.org/x/oauth2/google"
)

// CredentialSourceKind tags how a credential source is looked up
type CredentialSourceKind string

const (
	// SourceEnv reads inline service account JSON from an environment variable
	SourceEnv CredentialSourceKind = "env"
	// SourceFile reads service account JSON from a file path
	SourceFile CredentialSourceKind = "file"
	// SourceSecret reads service account JSON from the latest version of a Secret Manager secret
	SourceSecret CredentialSourceKind = "secret"
	// SourceADC uses Application Default Credentials. Never part of the default descriptors.
	SourceADC CredentialSourceKind = "adc"
	// SourceLocal needs no credential. It is used for backends that never call Google APIs, such as a local storage directory.
	SourceLocal CredentialSourceKind = "local"
)

type CredentialSource struct {
	Kind CredentialSourceKind
	// Ref is the environment variable name, file path or secret ID depending on Kind. Empty for SourceADC.
	Ref string
}

func (x CredentialSource) String() string {
	if x.Ref == "" {
		return string(x.Kind)
	}
	return string(x.Kind) + ":" + x.Ref
}

func EnvSource(name string) CredentialSource    { return CredentialSource{Kind: SourceEnv, Ref: name} }
func FileSource(path string) CredentialSource   { return CredentialSource{Kind: SourceFile, Ref: path} }
func SecretSource(name string) CredentialSource { return CredentialSource{Kind: SourceSecret, Ref: name} }
func ADCSource() CredentialSource               { return CredentialSource{Kind: SourceADC} }
func LocalSource() CredentialSource             { return CredentialSource{Kind: SourceLocal} }

// CredentialDescriptor is an ordered list of sources to try for one service.
type CredentialDescriptor struct {
	Service types.Service
	Sources []CredentialSource
	// FallbackSecret is the Secret Manager secret holding the service account JSON of the service. It is appended to Sources only when secret fallback is enabled.
	FallbackSecret types.SecretID
}

func (x CredentialDescriptor) Has(kind CredentialSourceKind) bool {
	for _, src := range x.Sources {
		if src.Kind == kind {
			return true
		}
	}
	return false
}

// With returns a copy of the descriptor with additional sources appended
func (x CredentialDescriptor) With(sources ...CredentialSource) CredentialDescriptor {
	merged := make([]CredentialSource, 0, len(x.Sources)+len(sources))
	merged = append(merged, x.Sources...)
	merged = append(merged, sources...)
	x.Sources = merged
	return x
}

func (x CredentialDescriptor) LogValue() slog.Value {
	srcs := make([]string, len(x.Sources))
	for i, s := range x.Sources {
		srcs[i] = s.String()
	}
	return slog.GroupValue(
		slog.String("service", x.Service.String()),
		slog.Any("sources", srcs),
	)
}

const DefaultCredentialDir = "var"

// DefaultDescriptors returns descriptors following the conventional environment variable and file names.
func DefaultDescriptors() map[types.Service]CredentialDescriptor {
	file := func(name string) CredentialSource {
		return FileSource(filepath.Join(DefaultCredentialDir, name))
	}

	return map[types.Service]CredentialDescriptor{
		types.ServiceBigQuery: {
			Service:        types.ServiceBigQuery,
			Sources:        []CredentialSource{EnvSource("BIGQUERY_SERVICE_ACCOUNT_JSON"), file("bigquery_service_account.json")},
			FallbackSecret: "bigquery-admin-service-account",
		},
		types.ServiceStorage: {
			Service:        types.ServiceStorage,
			Sources:        []CredentialSource{EnvSource("CLOUD_STORAGE_SERVICE_ACCOUNT_JSON"), file("storage_service_account.json")},
			FallbackSecret: "cloud-storage-admin-service-account",
		},
		types.ServiceTasks: {
			Service:        types.ServiceTasks,
			Sources:        []CredentialSource{EnvSource("CLOUD_TASKS_SERVICE_ACCOUNT_JSON"), file("cloud_tasks_service_account.json")},
			FallbackSecret: "cloud-tasks-admin-service-account",
		},
		types.ServiceScheduler: {
			Service:        types.ServiceScheduler,
			Sources:        []CredentialSource{EnvSource("CLOUD_SCHEDULER_SERVICE_ACCOUNT_JSON"), file("cloud_scheduler_service_account.json")},
			FallbackSecret: "cloud-scheduler-admin-service-account",
		},
		types.ServiceSecretManager: {
			Service: types.ServiceSecretManager,
			Sources: []CredentialSource{EnvSource("SECRET_MANAGER_SERVICE_ACCOUNT_JSON"), file("secret_manager_service_account.json")},
		},
		types.ServicePubSub: {
			Service:        types.ServicePubSub,
			Sources:        []CredentialSource{EnvSource("PUBSUB_SERVICE_ACCOUNT_JSON"), file("pubsub_service_account.json")},
			FallbackSecret: "pubsub-admin-service-account",
		},
		types.ServiceDatastore: {
			Service: types.ServiceDatastore,
			Sources: []CredentialSource{
				EnvSource("DATASTORE_SERVICE_ACCOUNT_JSON"),
				EnvSource("FIRESTORE_SERVICE_ACCOUNT_JSON"),
				file("datastore_service_account.json"),
			},
			FallbackSecret: "firestore-admin-service-account",
		},
		types.ServiceFirestore: {
			Service:        types.ServiceFirestore,
			Sources:        []CredentialSource{EnvSource("FIRESTORE_SERVICE_ACCOUNT_JSON"), file("firestore_service_account.json")},
			FallbackSecret: "firestore-admin-service-account",
		},
	}
}

// Credential is the resolved credential of one service
type Credential struct {
	Source    CredentialSource
	ProjectID types.GoogleProjectID
	// ClientEmail and PrivateKey are set only for service account keys. They are required to sign URLs.
	ClientEmail string
	PrivateKey  []byte

	Google *google.Credentials
}

func (x *Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", x.Source.String()),
		slog.String("project_id", x.ProjectID.String()),
		slog.String("client_email", x.ClientEmail),
	)
}
