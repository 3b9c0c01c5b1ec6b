package config

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/infra"
	"github.com/urfave/cli/v2"
)

// Credentials configures credential resolution and backends of the handler aggregator
type Credentials struct {
	envFiles       cli.StringSlice
	projectID      string
	secretFallback bool
	adcFallback    bool

	storageDir        string
	firestoreDatabase string
	datastoreDatabase string
	datastoreNS       string
}

func (x *Credentials) Flags() []cli.Flag {
	const category = "Credentials"
	return []cli.Flag{
		&cli.StringSliceFlag{
			Category:    category,
			Name:        "env-file",
			Aliases:     []string{"e"},
			Usage:       "Load environment variables (e.g. service account JSON) from .env file before resolving credentials",
			EnvVars:     []string{"GCU_ENV_FILE"},
			Destination: &x.envFiles,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "project-id",
			Aliases:     []string{"p"},
			Usage:       "Override project ID of every credential",
			EnvVars:     []string{"GCU_PROJECT_ID"},
			Destination: &x.projectID,
		},
		&cli.BoolFlag{
			Category:    category,
			Name:        "secret-fallback",
			Usage:       "Read service account JSON from Secret Manager when env and file are not available",
			EnvVars:     []string{"GCU_SECRET_FALLBACK"},
			Destination: &x.secretFallback,
		},
		&cli.BoolFlag{
			Category:    category,
			Name:        "adc-fallback",
			Usage:       "Use Application Default Credentials when no other credential is available",
			EnvVars:     []string{"GCU_ADC_FALLBACK"},
			Destination: &x.adcFallback,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "storage-dir",
			Usage:       "Use a local directory instead of Cloud Storage (for development)",
			EnvVars:     []string{"GCU_STORAGE_DIR"},
			Destination: &x.storageDir,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			EnvVars:     []string{"GCU_FIRESTORE_DATABASE_ID"},
			Destination: &x.firestoreDatabase,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "datastore-database-id",
			Usage:       "Datastore database ID",
			EnvVars:     []string{"GCU_DATASTORE_DATABASE_ID"},
			Destination: &x.datastoreDatabase,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "datastore-namespace",
			Usage:       "Datastore namespace",
			EnvVars:     []string{"GCU_DATASTORE_NAMESPACE"},
			Destination: &x.datastoreNS,
		},
	}
}

// Configure loads env files and returns aggregator options. Handlers are built on first use, so no credential is resolved here.
func (x *Credentials) Configure() ([]handler.Option, error) {
	if files := x.envFiles.Value(); len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, goerr.Wrap(err, "failed to load env file", goerr.V("files", files))
		}
	}

	var options []handler.Option
	if x.projectID != "" {
		options = append(options, handler.WithProjectID(types.GoogleProjectID(x.projectID)))
	}
	if x.secretFallback {
		options = append(options, handler.WithSecretFallback())
	}
	if x.adcFallback {
		options = append(options, handler.WithADCFallback())
	}

	var infraOptions []infra.Option
	if x.storageDir != "" {
		infraOptions = append(infraOptions, infra.WithStorageDir(x.storageDir))
	}
	if x.firestoreDatabase != "" {
		infraOptions = append(infraOptions, infra.WithFirestoreDatabase(x.firestoreDatabase))
	}
	if x.datastoreDatabase != "" {
		infraOptions = append(infraOptions, infra.WithDatastoreDatabase(x.datastoreDatabase))
	}
	if x.datastoreNS != "" {
		infraOptions = append(infraOptions, infra.WithDatastoreNamespace(x.datastoreNS))
	}
	if len(infraOptions) > 0 {
		options = append(options, handler.WithFactories(infra.New(infraOptions...)))
	}

	return options, nil
}

func (x *Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("env_files", x.envFiles.Value()),
		slog.String("project_id", x.projectID),
		slog.Bool("secret_fallback", x.secretFallback),
		slog.Bool("adc_fallback", x.adcFallback),
		slog.String("storage_dir", x.storageDir),
		slog.String("firestore_database_id", x.firestoreDatabase),
		slog.String("datastore_database_id", x.datastoreDatabase),
		slog.String("datastore_namespace", x.datastoreNS),
	)
}
