package cmd

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/usecase"
	"github.com/secmon-lab/gcu/pkg/utils"
	"github.com/urfave/cli/v2"
)

func storageCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:    "storage",
		Aliases: []string{"gcs"},
		Usage:   "Cloud Storage operations",
		Subcommands: []*cli.Command{
			storageUploadCommand(rt),
			storageDownloadCommand(rt),
			storageListCommand(rt),
			storageSignedURLCommand(rt),
			storageMoveCommand(rt),
			storageEnqueueCommand(rt),
		},
	}
}

func parseObjectURL(s string) (model.CloudStorageObject, error) {
	bucket, name, err := types.CSUrl(s).Parse()
	if err != nil {
		return model.CloudStorageObject{}, err
	}
	return model.CloudStorageObject{Bucket: bucket, Name: name}, nil
}

func storageUploadCommand(rt *runtime) *cli.Command {
	var contentType string

	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a local file",
		ArgsUsage: "FILE gs://BUCKET/OBJECT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "content-type",
				Usage:       "Content type (default: detected from data)",
				Destination: &contentType,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2)
			if err != nil {
				return err
			}
			dst, err := parseObjectURL(args[1])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return goerr.Wrap(err, "failed to read file", goerr.V("path", args[0]))
			}
			if contentType == "" {
				contentType = http.DetectContentType(data)
			}

			storage, err := rt.agg.Storage(c.Context)
			if err != nil {
				return err
			}
			return storage.Upload(c.Context, dst.Bucket, dst.Name, data, contentType)
		},
	}
}

func storageDownloadCommand(rt *runtime) *cli.Command {
	var output string

	return &cli.Command{
		Name:      "download",
		Usage:     "Download an object to a file or stdout",
		ArgsUsage: "gs://BUCKET/OBJECT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Output file path. Write to stdout if empty",
				Destination: &output,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			src, err := parseObjectURL(args[0])
			if err != nil {
				return err
			}

			storage, err := rt.agg.Storage(c.Context)
			if err != nil {
				return err
			}
			data, err := storage.Download(c.Context, src.Bucket, src.Name)
			if err != nil {
				return err
			}

			if output == "" {
				utils.SafeWrite(rt.out, data)
				return nil
			}
			if err := os.WriteFile(filepath.Clean(output), data, 0600); err != nil {
				return goerr.Wrap(err, "failed to write file", goerr.V("path", output))
			}
			utils.Logger().Info("downloaded", "url", src.URL(), "path", output, "size", humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
}

func storageListCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List objects under a prefix",
		ArgsUsage: "gs://BUCKET[/PREFIX]",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			bucket, prefix, err := types.CSUrl(args[0]).ParsePrefix()
			if err != nil {
				return err
			}

			storage, err := rt.agg.Storage(c.Context)
			if err != nil {
				return err
			}
			objects, err := storage.List(c.Context, bucket, prefix)
			if err != nil {
				return err
			}
			return printJSON(rt.out, objects)
		},
	}
}

func storageSignedURLCommand(rt *runtime) *cli.Command {
	var ttl time.Duration

	return &cli.Command{
		Name:      "signed-url",
		Usage:     "Print a signed GET URL of an object",
		ArgsUsage: "gs://BUCKET/OBJECT",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "Lifetime of the URL",
				Value:       handler.DefaultSignedURLTTL,
				Destination: &ttl,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			obj, err := parseObjectURL(args[0])
			if err != nil {
				return err
			}

			storage, err := rt.agg.Storage(c.Context)
			if err != nil {
				return err
			}
			url, err := storage.SignedURL(c.Context, obj.Bucket, obj.Name, ttl)
			if err != nil {
				return err
			}
			utils.SafeWrite(rt.out, []byte(url+"\n"))
			return nil
		},
	}
}

func storageMoveCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "move",
		Aliases:   []string{"mv"},
		Usage:     "Move an object",
		ArgsUsage: "gs://SRC_BUCKET/OBJECT gs://DST_BUCKET/OBJECT",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2)
			if err != nil {
				return err
			}
			src, err := parseObjectURL(args[0])
			if err != nil {
				return err
			}
			dst, err := parseObjectURL(args[1])
			if err != nil {
				return err
			}

			storage, err := rt.agg.Storage(c.Context)
			if err != nil {
				return err
			}
			return storage.Move(c.Context, src, dst)
		},
	}
}

func storageEnqueueCommand(rt *runtime) *cli.Command {
	var (
		topic      string
		countLimit int
		sizeLimit  int
	)

	return &cli.Command{
		Name:      "enqueue",
		Usage:     "Publish objects under a prefix to a Pub/Sub topic in batches",
		ArgsUsage: "gs://BUCKET[/PREFIX]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "topic",
				Aliases:     []string{"t"},
				EnvVars:     []string{"GCU_ENQUEUE_TOPIC"},
				Usage:       "Pub/Sub topic ID",
				Required:    true,
				Destination: &topic,
			},
			&cli.IntFlag{
				Name:        "count-limit",
				EnvVars:     []string{"GCU_ENQUEUE_COUNT_LIMIT"},
				Usage:       "Max number of objects in one message",
				Destination: &countLimit,
				Value:       128,
			},
			&cli.IntFlag{
				Name:        "size-limit",
				EnvVars:     []string{"GCU_ENQUEUE_SIZE_LIMIT"},
				Usage:       "Max total object size in one message (MiB)",
				Destination: &sizeLimit,
				Value:       4,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}

			uc := usecase.New(rt.agg,
				usecase.WithEnqueueCountLimit(countLimit),
				usecase.WithEnqueueSizeLimit(int64(sizeLimit)*1024*1024),
			)
			result, err := uc.Enqueue(c.Context, types.CSUrl(args[0]), types.PubSubTopicID(topic))
			if err != nil {
				return err
			}
			return printJSON(rt.out, result)
		},
	}
}
