package config

import (
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/controller/server"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/usecase"
	"github.com/urfave/cli/v2"
)

// Server configures the push receiver
type Server struct {
	Addr string

	archiveBucket   string
	archivePrefix   string
	stateCollection string
	memoryLimit     string
}

func (x *Server) Flags() []cli.Flag {
	const category = "Server"
	return []cli.Flag{
		&cli.StringFlag{
			Category:    category,
			Name:        "addr",
			Aliases:     []string{"a"},
			EnvVars:     []string{"GCU_ADDR"},
			Usage:       "Address to listen",
			Destination: &x.Addr,
			Value:       "localhost:8080",
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "archive-bucket",
			EnvVars:     []string{"GCU_ARCHIVE_BUCKET"},
			Usage:       "Cloud Storage bucket to archive push messages. Messages are only logged if empty",
			Destination: &x.archiveBucket,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "archive-prefix",
			EnvVars:     []string{"GCU_ARCHIVE_PREFIX"},
			Usage:       "Object name prefix of archived push messages",
			Destination: &x.archivePrefix,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "state-collection",
			EnvVars:     []string{"GCU_STATE_COLLECTION"},
			Usage:       "Firestore collection to record handled message IDs and skip redelivery",
			Destination: &x.stateCollection,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "memory-limit",
			EnvVars:     []string{"GCU_MEMORY_LIMIT"},
			Usage:       "Heap size limit. Push requests get 429 too many requests while it is exceeded (e.g. 1GiB)",
			Destination: &x.memoryLimit,
		},
	}
}

func (x *Server) UseCaseOptions() []usecase.Option {
	var options []usecase.Option
	if x.archiveBucket != "" {
		options = append(options, usecase.WithArchive(types.CSBucket(x.archiveBucket), x.archivePrefix))
	}
	if x.stateCollection != "" {
		options = append(options, usecase.WithStateCollection(types.Collection(x.stateCollection)))
	}
	return options
}

func (x *Server) ServerOptions() ([]server.Option, error) {
	var options []server.Option
	if x.memoryLimit != "" {
		limit, err := humanize.ParseBytes(x.memoryLimit)
		if err != nil {
			return nil, goerr.Wrap(types.ErrInvalidOption, "invalid memory limit option",
				goerr.V("memory_limit", x.memoryLimit),
				goerr.V("error", err.Error()),
			)
		}
		options = append(options, server.WithMemoryLimit(limit))
	}
	return options, nil
}

func (x *Server) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", x.Addr),
		slog.String("archive_bucket", x.archiveBucket),
		slog.String("archive_prefix", x.archivePrefix),
		slog.String("state_collection", x.stateCollection),
		slog.String("memory_limit", x.memoryLimit),
	)
}
