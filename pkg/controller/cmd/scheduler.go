package cmd

import (
	"context"

	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/urfave/cli/v2"
)

func locationFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "location",
		Usage:       "Location of the jobs",
		EnvVars:     []string{"GCU_SCHEDULER_LOCATION"},
		Required:    true,
		Destination: dst,
	}
}

func schedulerCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "scheduler",
		Usage: "Cloud Scheduler operations",
		Subcommands: []*cli.Command{
			schedulerLocationsCommand(rt),
			schedulerListCommand(rt),
			schedulerJobCommand(rt, "get", "Print a job", (*handler.Scheduler).GetJob),
			schedulerJobCommand(rt, "run", "Run a job now", (*handler.Scheduler).RunJob),
			schedulerJobCommand(rt, "pause", "Pause a job", (*handler.Scheduler).PauseJob),
			schedulerJobCommand(rt, "resume", "Resume a paused job", (*handler.Scheduler).ResumeJob),
			schedulerDeleteCommand(rt),
		},
	}
}

func schedulerLocationsCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "locations",
		Usage: "List locations where jobs can be created",
		Action: func(c *cli.Context) error {
			scheduler, err := rt.agg.Scheduler(c.Context)
			if err != nil {
				return err
			}
			locations, err := scheduler.ListLocations(c.Context)
			if err != nil {
				return err
			}
			return printJSON(rt.out, locations)
		},
	}
}

func schedulerListCommand(rt *runtime) *cli.Command {
	var location string

	return &cli.Command{
		Name:  "list",
		Usage: "List jobs of a location",
		Flags: []cli.Flag{locationFlag(&location)},
		Action: func(c *cli.Context) error {
			scheduler, err := rt.agg.Scheduler(c.Context)
			if err != nil {
				return err
			}
			jobs, err := scheduler.ListJobs(c.Context, types.GoogleLocation(location))
			if err != nil {
				return err
			}
			return printJSON(rt.out, jobs)
		},
	}
}

type jobOperation func(x *handler.Scheduler, ctx context.Context, location types.GoogleLocation, job types.SchedulerJobID) (*model.SchedulerJob, error)

func schedulerJobCommand(rt *runtime, name, usage string, op jobOperation) *cli.Command {
	var location string

	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "JOB",
		Flags:     []cli.Flag{locationFlag(&location)},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}

			scheduler, err := rt.agg.Scheduler(c.Context)
			if err != nil {
				return err
			}
			job, err := op(scheduler, c.Context, types.GoogleLocation(location), types.SchedulerJobID(args[0]))
			if err != nil {
				return err
			}
			return printJSON(rt.out, job)
		},
	}
}

func schedulerDeleteCommand(rt *runtime) *cli.Command {
	var location string

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a job",
		ArgsUsage: "JOB",
		Flags:     []cli.Flag{locationFlag(&location)},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}

			scheduler, err := rt.agg.Scheduler(c.Context)
			if err != nil {
				return err
			}
			return scheduler.DeleteJob(c.Context, types.GoogleLocation(location), types.SchedulerJobID(args[0]))
		},
	}
}
