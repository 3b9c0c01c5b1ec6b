package cmd

import (
	"context"

	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/urfave/cli/v2"
)

// documentStore is the common part of the Firestore and Datastore handlers
type documentStore interface {
	Get(ctx context.Context, collection types.Collection, id types.DocumentID) (model.Document, error)
	Set(ctx context.Context, collection types.Collection, id types.DocumentID, doc model.Document, merge bool) error
	Delete(ctx context.Context, collection types.Collection, id types.DocumentID) error
	Query(ctx context.Context, collection types.Collection, filters []model.Filter, limit int) ([]model.Document, error)
}

var (
	_ documentStore = &handler.Firestore{}
	_ documentStore = &handler.Datastore{}
)

type storeGetter func(ctx context.Context) (documentStore, error)

func firestoreCommand(rt *runtime) *cli.Command {
	store := func(ctx context.Context) (documentStore, error) { return rt.agg.Firestore(ctx) }
	return &cli.Command{
		Name:        "firestore",
		Usage:       "Firestore operations",
		Subcommands: documentCommands(rt, "COLLECTION", store),
	}
}

func datastoreCommand(rt *runtime) *cli.Command {
	store := func(ctx context.Context) (documentStore, error) { return rt.agg.Datastore(ctx) }
	return &cli.Command{
		Name:        "datastore",
		Usage:       "Datastore operations",
		Subcommands: append(documentCommands(rt, "KIND", store), datastoreClearCommand(rt)),
	}
}

func documentCommands(rt *runtime, collection string, store storeGetter) []*cli.Command {
	return []*cli.Command{
		documentGetCommand(rt, collection, store),
		documentSetCommand(rt, collection, store),
		documentDeleteCommand(rt, collection, store),
		documentQueryCommand(rt, collection, store),
	}
}

func documentGetCommand(rt *runtime, collection string, store storeGetter) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print a document. null if it does not exist",
		ArgsUsage: collection + " ID",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2)
			if err != nil {
				return err
			}

			s, err := store(c.Context)
			if err != nil {
				return err
			}
			doc, err := s.Get(c.Context, types.Collection(args[0]), types.DocumentID(args[1]))
			if err != nil {
				return err
			}
			return printJSON(rt.out, doc)
		},
	}
}

func documentSetCommand(rt *runtime, collection string, store storeGetter) *cli.Command {
	var merge bool

	return &cli.Command{
		Name:      "set",
		Usage:     "Write a document given as JSON object",
		ArgsUsage: collection + " ID JSON",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "merge",
				Usage:       "Merge fields into the existing document",
				Destination: &merge,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 3)
			if err != nil {
				return err
			}
			doc, err := parseDocument(args[2])
			if err != nil {
				return err
			}

			s, err := store(c.Context)
			if err != nil {
				return err
			}
			return s.Set(c.Context, types.Collection(args[0]), types.DocumentID(args[1]), doc, merge)
		},
	}
}

func documentDeleteCommand(rt *runtime, collection string, store storeGetter) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a document",
		ArgsUsage: collection + " ID",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2)
			if err != nil {
				return err
			}

			s, err := store(c.Context)
			if err != nil {
				return err
			}
			return s.Delete(c.Context, types.Collection(args[0]), types.DocumentID(args[1]))
		},
	}
}

func documentQueryCommand(rt *runtime, collection string, store storeGetter) *cli.Command {
	var (
		where cli.StringSlice
		limit int
	)

	return &cli.Command{
		Name:      "query",
		Usage:     "Print documents matching all filters",
		ArgsUsage: collection,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "where",
				Aliases:     []string{"w"},
				Usage:       `Filter as FIELD OP VALUE without spaces, e.g. status=="done" or count>=3`,
				Destination: &where,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "Max number of documents. 0 means no limit",
				Destination: &limit,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			filters, err := parseFilters(where.Value())
			if err != nil {
				return err
			}

			s, err := store(c.Context)
			if err != nil {
				return err
			}
			docs, err := s.Query(c.Context, types.Collection(args[0]), filters, limit)
			if err != nil {
				return err
			}
			return printJSON(rt.out, docs)
		},
	}
}

func datastoreClearCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "Delete all entities of a kind",
		ArgsUsage: "KIND",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}

			ds, err := rt.agg.Datastore(c.Context)
			if err != nil {
				return err
			}
			n, err := ds.Clear(c.Context, types.Collection(args[0]))
			if err != nil {
				return err
			}
			return printJSON(rt.out, map[string]int{"deleted": n})
		},
	}
}
