package cmd

import (
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/usecase"
	"github.com/secmon-lab/gcu/pkg/utils"
	"github.com/urfave/cli/v2"
)

func bigqueryCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:    "bq",
		Aliases: []string{"bigquery"},
		Usage:   "BigQuery operations",
		Subcommands: []*cli.Command{
			bqQueryCommand(rt),
			bqTableCommand(rt),
			bqExistsCommand(rt),
			bqJobsCommand(rt),
			bqFunctionsCommand(rt),
			bqCallCommand(rt),
			bqLoadCommand(rt),
		},
	}
}

type queryOutput struct {
	JobID types.BQJobID `json:"job_id"`
	Rows  []model.Row   `json:"rows"`
}

func bqQueryCommand(rt *runtime) *cli.Command {
	var (
		params    cli.StringSlice
		location  string
		legacySQL bool
	)

	return &cli.Command{
		Name:      "query",
		Usage:     "Run a query and print rows",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "param",
				Usage:       "Named query parameter as name=value (string)",
				Destination: &params,
			},
			&cli.StringFlag{
				Name:        "location",
				Usage:       "Location of the query job",
				Destination: &location,
			},
			&cli.BoolFlag{
				Name:        "legacy-sql",
				Usage:       "Use legacy SQL",
				Destination: &legacySQL,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			kv, err := parseKeyValues(params.Value())
			if err != nil {
				return err
			}

			var options []model.QueryOption
			for name, value := range kv {
				options = append(options, model.WithQueryParameter(name, value))
			}
			if location != "" {
				options = append(options, model.WithQueryLocation(location))
			}
			if legacySQL {
				options = append(options, model.WithLegacySQL())
			}

			bq, err := rt.agg.BigQuery(c.Context)
			if err != nil {
				return err
			}
			result, err := bq.RunQuery(c.Context, args[0], options...)
			if err != nil {
				return err
			}

			return printJSON(rt.out, &queryOutput{JobID: result.JobID, Rows: result.Rows})
		},
	}
}

func bqTableCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "table",
		Usage:     "Print all rows of a table",
		ArgsUsage: "DATASET TABLE",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2)
			if err != nil {
				return err
			}

			bq, err := rt.agg.BigQuery(c.Context)
			if err != nil {
				return err
			}
			rows, err := bq.GetTable(c.Context, types.BQDatasetID(args[0]), types.BQTableID(args[1]))
			if err != nil {
				return err
			}
			return printJSON(rt.out, rows)
		},
	}
}

func bqExistsCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "exists",
		Usage:     "Print whether a table exists",
		ArgsUsage: "DATASET TABLE",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2)
			if err != nil {
				return err
			}

			bq, err := rt.agg.BigQuery(c.Context)
			if err != nil {
				return err
			}
			exists, err := bq.TableExists(c.Context, types.BQDatasetID(args[0]), types.BQTableID(args[1]))
			if err != nil {
				return err
			}
			return printJSON(rt.out, exists)
		},
	}
}

func bqJobsCommand(rt *runtime) *cli.Command {
	var region string

	return &cli.Command{
		Name:      "jobs",
		Usage:     "Print details of jobs from INFORMATION_SCHEMA",
		ArgsUsage: "JOB_ID...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "region",
				Usage:       "Region of the jobs",
				Value:       "us",
				Destination: &region,
			},
		},
		Action: func(c *cli.Context) error {
			var jobIDs []types.BQJobID
			for _, arg := range c.Args().Slice() {
				jobIDs = append(jobIDs, types.BQJobID(arg))
			}

			bq, err := rt.agg.BigQuery(c.Context)
			if err != nil {
				return err
			}
			rows, err := bq.RetrieveJobDetails(c.Context, region, jobIDs)
			if err != nil {
				return err
			}
			return printJSON(rt.out, rows)
		},
	}
}

func bqFunctionsCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "functions",
		Usage:     "List table functions of a dataset",
		ArgsUsage: "DATASET",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}

			bq, err := rt.agg.BigQuery(c.Context)
			if err != nil {
				return err
			}
			functions, err := bq.ListTableFunctions(c.Context, types.BQDatasetID(args[0]))
			if err != nil {
				return err
			}
			return printJSON(rt.out, functions)
		},
	}
}

func bqCallCommand(rt *runtime) *cli.Command {
	var fnArgs cli.StringSlice

	return &cli.Command{
		Name:      "call",
		Usage:     "Run a table function and print rows",
		ArgsUsage: "DATASET FUNCTION",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "arg",
				Usage:       "Argument as TYPE=VALUE in positional order, e.g. DATE=2024-01-01",
				Destination: &fnArgs,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2)
			if err != nil {
				return err
			}

			var callArgs []model.TableFunctionArg
			for i, arg := range fnArgs.Value() {
				typ, value, ok := strings.Cut(arg, "=")
				if !ok || typ == "" {
					return goerr.Wrap(types.ErrInvalidOption, "argument must be TYPE=VALUE", goerr.V("arg", arg))
				}
				callArgs = append(callArgs, model.TableFunctionArg{
					Position: int64(i + 1),
					Type:     typ,
					Value:    value,
				})
			}

			bq, err := rt.agg.BigQuery(c.Context)
			if err != nil {
				return err
			}
			result, err := bq.RunTableFunction(c.Context, types.BQDatasetID(args[0]), args[1], callArgs)
			if err != nil {
				return err
			}
			return printJSON(rt.out, &queryOutput{JobID: result.JobID, Rows: result.Rows})
		},
	}
}

func bqLoadCommand(rt *runtime) *cli.Command {
	var (
		dataset   string
		table     string
		baseTable string
		appendTo  bool
		loadedAt  bool
		force     bool
		forceType string
	)

	return &cli.Command{
		Name:      "load",
		Usage:     "Load JSON records of a Cloud Storage object into a table",
		ArgsUsage: "gs://BUCKET/OBJECT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dataset",
				Aliases:     []string{"d"},
				Usage:       "Destination dataset",
				Required:    true,
				Destination: &dataset,
			},
			&cli.StringFlag{
				Name:        "table",
				Aliases:     []string{"t"},
				Usage:       "Destination table",
				Required:    true,
				Destination: &table,
			},
			&cli.StringFlag{
				Name:        "base-table",
				Usage:       "Table whose schema is preferred (default: destination without _temp suffix)",
				Destination: &baseTable,
			},
			&cli.BoolFlag{
				Name:        "append",
				Usage:       "Append records instead of replacing the table",
				Destination: &appendTo,
			},
			&cli.BoolFlag{
				Name:        "loaded-at",
				Usage:       "Add loaded_at field with load time",
				Destination: &loadedAt,
			},
			&cli.BoolFlag{
				Name:        "force-schema",
				Usage:       "Ignore existing table schema",
				Destination: &force,
			},
			&cli.StringFlag{
				Name:        "force-type",
				Usage:       "Type of every inferred column (STRING, INTEGER, FLOAT, BOOLEAN)",
				Destination: &forceType,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}

			opts := model.LoadOptions{
				WriteDisposition: model.WriteTruncate,
				IncludeLoadedAt:  loadedAt,
				BaseTable:        types.BQTableID(baseTable),
				ForceSchema:      force,
				ForceType:        bigquery.FieldType(strings.ToUpper(forceType)),
			}
			if appendTo {
				opts.WriteDisposition = model.WriteAppend
			}

			uc := usecase.New(rt.agg)
			result, err := uc.LoadObject(c.Context, types.CSUrl(args[0]), types.BQDatasetID(dataset), types.BQTableID(table), opts)
			if err != nil {
				return err
			}

			utils.Logger().Info("loaded", "job_id", result.JobID, "rows", result.Rows)
			return printJSON(rt.out, result)
		},
	}
}
