package cmd

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/urfave/cli/v2"
)

type checkResult struct {
	Service   types.Service         `json:"service"`
	Sources   []string              `json:"sources"`
	ProjectID types.GoogleProjectID `json:"project_id,omitempty"`
	Error     string                `json:"error,omitempty"`
}

type projectIDer interface {
	ProjectID() types.GoogleProjectID
}

func checkCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Resolve credentials and build handlers of services. All services if no argument",
		ArgsUsage: "[SERVICE...]",
		Action: func(c *cli.Context) error {
			services := types.Services()
			if c.NArg() > 0 {
				services = nil
				for _, arg := range c.Args().Slice() {
					svc := types.Service(arg)
					if !svc.Valid() {
						return goerr.Wrap(types.ErrInvalidOption, "unknown service",
							goerr.V("service", arg),
							goerr.V("available", types.Services()),
						)
					}
					services = append(services, svc)
				}
			}

			var failed int
			results := make([]*checkResult, 0, len(services))
			for _, svc := range services {
				result := &checkResult{Service: svc}
				for _, src := range rt.agg.Descriptor(svc).Sources {
					result.Sources = append(result.Sources, src.String())
				}

				h, err := rt.agg.Open(c.Context, svc)
				if err != nil {
					result.Error = err.Error()
					failed++
				} else if p, ok := h.(projectIDer); ok {
					result.ProjectID = p.ProjectID()
				}
				results = append(results, result)
			}

			if err := printJSON(rt.out, results); err != nil {
				return err
			}
			if failed > 0 {
				return goerr.New("some services are not available", goerr.V("failed", failed))
			}
			return nil
		},
	}
}
