package cmd

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/urfave/cli/v2"
)

func mergeFlags(flags ...[]cli.Flag) []cli.Flag {
	var merged []cli.Flag
	for _, f := range flags {
		merged = append(merged, f...)
	}
	return merged
}

// printJSON writes v to w as indented JSON
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

// requireArgs returns positional arguments if exactly n are given
func requireArgs(c *cli.Context, n int) ([]string, error) {
	args := c.Args().Slice()
	if len(args) != n {
		return nil, goerr.Wrap(types.ErrInvalidOption, "wrong number of arguments",
			goerr.V("want", n),
			goerr.V("got", len(args)),
			goerr.V("usage", c.Command.ArgsUsage),
		)
	}
	return args, nil
}

// parseKeyValues converts ["k=v", ...] into a map
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	kv := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, goerr.Wrap(types.ErrInvalidOption, "expected key=value", goerr.V("value", p))
		}
		kv[k] = v
	}
	return kv, nil
}

// filterOps is ordered so that two character operators are matched first
var filterOps = []string{"==", "!=", "<=", ">=", "<", ">"}

// parseFilters converts ["field==value", ...] into query filters. Values are decoded as JSON when possible, otherwise kept as string.
func parseFilters(exprs []string) ([]model.Filter, error) {
	var filters []model.Filter
	for _, expr := range exprs {
		var (
			filter model.Filter
			found  bool
		)
		for _, op := range filterOps {
			field, value, ok := strings.Cut(expr, op)
			if !ok {
				continue
			}
			if field == "" {
				return nil, goerr.Wrap(types.ErrInvalidOption, "filter has empty field", goerr.V("filter", expr))
			}
			filter = model.Filter{Field: field, Op: op, Value: decodeValue(value)}
			found = true
			break
		}
		if !found {
			return nil, goerr.Wrap(types.ErrInvalidOption, "filter has no operator", goerr.V("filter", expr))
		}
		filters = append(filters, filter)
	}
	return filters, nil
}

func decodeValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// parseDocument decodes a JSON object given on the command line
func parseDocument(s string) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "document must be a JSON object",
			goerr.V("document", s),
			goerr.V("error", err.Error()),
		)
	}
	if doc == nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "document must be a JSON object", goerr.V("document", s))
	}
	return doc, nil
}
