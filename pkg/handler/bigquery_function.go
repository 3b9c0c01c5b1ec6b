package handler

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// TableFunctionPrefix is the name prefix of table functions created from report metadata
const TableFunctionPrefix = "DL_Report_"

var (
	bqTypePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

	paramDateLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"01/02/2006",
	}
)

func (x *BigQuery) tablePath(dataset types.BQDatasetID, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", x.projectID, dataset, name)
}

// ListTableFunctions returns routines of the dataset with their parameters ordered by position
func (x *BigQuery) ListTableFunctions(ctx context.Context, dataset types.BQDatasetID) ([]*model.TableFunction, error) {
	const op = "ListTableFunctions"
	if !bqIdentifierPattern.MatchString(dataset.String()) {
		return nil, invalidInput(types.ServiceBigQuery, op, "invalid dataset ID", goerr.V("dataset", dataset))
	}

	query := fmt.Sprintf(`SELECT r.specific_name, REGEXP_EXTRACT(r.ddl, r'.*description="(.*)".*') AS report_name, p.ordinal_position, p.parameter_name, p.data_type
FROM %s AS r
LEFT JOIN %s AS p USING(specific_name)
ORDER BY r.specific_name, p.ordinal_position`,
		x.tablePath(dataset, "INFORMATION_SCHEMA.ROUTINES"),
		x.tablePath(dataset, "INFORMATION_SCHEMA.PARAMETERS"),
	)

	resp, err := x.backend.Query(ctx, query, model.NewQueryOptions())
	if err != nil {
		return nil, opError(types.ServiceBigQuery, op, err)
	}

	return groupTableFunctions(resp.Rows), nil
}

func groupTableFunctions(rows []model.Row) []*model.TableFunction {
	var (
		fns   []*model.TableFunction
		index = map[string]*model.TableFunction{}
	)

	for _, row := range rows {
		name := valueString(row["specific_name"])
		if name == "" {
			continue
		}

		fn, ok := index[name]
		if !ok {
			parts := strings.Split(name, "_")
			fn = &model.TableFunction{
				FunctionName: name,
				ReportName:   valueString(row["report_name"]),
				ReportID:     parts[len(parts)-1],
				Params:       []model.TableFunctionParam{},
			}
			index[name] = fn
			fns = append(fns, fn)
		}

		paramName := valueString(row["parameter_name"])
		if paramName == "" {
			continue
		}
		pos, _ := row["ordinal_position"].(int64)
		fn.Params = append(fn.Params, model.TableFunctionParam{
			Position: pos,
			Name:     paramName,
			Type:     valueString(row["data_type"]),
		})
	}

	for _, fn := range fns {
		sort.SliceStable(fn.Params, func(i, j int) bool { return fn.Params[i].Position < fn.Params[j].Position })
	}
	return fns
}

func valueString(v bigquery.Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// FormatParams normalizes table function arguments. DATE values in a known layout become YYYY-MM-DD and TEXT becomes STRING. Unparseable dates are kept as is.
func FormatParams(args []model.TableFunctionArg) []model.TableFunctionArg {
	formatted := make([]model.TableFunctionArg, len(args))
	for i, arg := range args {
		switch strings.ToUpper(arg.Type) {
		case "DATE":
			for _, layout := range paramDateLayouts {
				if t, err := time.Parse(layout, arg.Value); err == nil {
					arg.Value = t.Format("2006-01-02")
					break
				}
			}
		case "TEXT":
			arg.Type = "STRING"
		}
		formatted[i] = arg
	}
	return formatted
}

// RunTableFunction calls a table function with arguments ordered by position. Arguments are passed as query parameters and cast to their declared type.
func (x *BigQuery) RunTableFunction(ctx context.Context, dataset types.BQDatasetID, functionName string, args []model.TableFunctionArg) (*model.QueryResult, error) {
	const op = "RunTableFunction"
	if !bqIdentifierPattern.MatchString(dataset.String()) {
		return nil, invalidInput(types.ServiceBigQuery, op, "invalid dataset ID", goerr.V("dataset", dataset))
	}
	if !bqIdentifierPattern.MatchString(functionName) {
		return nil, invalidInput(types.ServiceBigQuery, op, "invalid function name", goerr.V("function", functionName))
	}

	sorted := append([]model.TableFunctionArg(nil), args...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	sorted = FormatParams(sorted)

	var (
		exprs   []string
		options []model.QueryOption
	)
	for i, arg := range sorted {
		name := fmt.Sprintf("p%d", i+1)
		argType := strings.ToUpper(arg.Type)

		switch {
		case argType == "" || argType == "STRING":
			exprs = append(exprs, "@"+name)
		case bqTypePattern.MatchString(argType):
			exprs = append(exprs, fmt.Sprintf("CAST(@%s AS %s)", name, argType))
		default:
			return nil, invalidInput(types.ServiceBigQuery, op, "invalid argument type", goerr.V("type", arg.Type))
		}
		options = append(options, model.WithQueryParameter(name, arg.Value))
	}

	query := fmt.Sprintf("SELECT * FROM %s(%s)", x.tablePath(dataset, functionName), strings.Join(exprs, ", "))
	resp, err := x.backend.Query(ctx, query, model.NewQueryOptions(options...))
	if err != nil {
		return nil, opError(types.ServiceBigQuery, op, err)
	}
	return resp, nil
}

// TableFunctionDDL builds a CREATE OR REPLACE TABLE FUNCTION statement for the report. It does not run the statement.
func (x *BigQuery) TableFunctionDDL(dataset types.BQDatasetID, meta model.TableFunctionMeta, sql string) (string, error) {
	const op = "TableFunctionDDL"
	if !bqIdentifierPattern.MatchString(dataset.String()) {
		return "", invalidInput(types.ServiceBigQuery, op, "invalid dataset ID", goerr.V("dataset", dataset))
	}
	if !bqIdentifierPattern.MatchString(meta.ReportID) {
		return "", invalidInput(types.ServiceBigQuery, op, "invalid report ID", goerr.V("reportID", meta.ReportID))
	}

	params := append([]model.TableFunctionParam(nil), meta.Params...)
	sort.SliceStable(params, func(i, j int) bool { return params[i].Position < params[j].Position })

	defs := make([]string, 0, len(params))
	for _, p := range params {
		name := strings.ReplaceAll(p.Name, " ", "_")
		if !bqIdentifierPattern.MatchString(name) {
			return "", invalidInput(types.ServiceBigQuery, op, "invalid parameter name", goerr.V("name", p.Name))
		}
		pType := strings.ToUpper(p.Type)
		if !bqTypePattern.MatchString(pType) {
			return "", invalidInput(types.ServiceBigQuery, op, "invalid parameter type", goerr.V("type", p.Type))
		}
		defs = append(defs, name+" "+pType)
	}

	return fmt.Sprintf("CREATE OR REPLACE TABLE FUNCTION %s(%s)\nOPTIONS(description = %s)\nAS (\n%s\n)",
		x.tablePath(dataset, TableFunctionPrefix+meta.ReportID),
		strings.Join(defs, ", "),
		strconv.Quote(meta.Name),
		sql,
	), nil
}

// TableFunctionExists reports whether a function of the report is in fns
func TableFunctionExists(fns []*model.TableFunction, reportID string) bool {
	for _, fn := range fns {
		if fn.ReportID == reportID {
			return true
		}
	}
	return false
}
