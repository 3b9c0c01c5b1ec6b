package model

import (
	"cloud.google.com/go/bigquery"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Row is one result row keyed by column name
type Row map[string]bigquery.Value

type QueryParameter struct {
	Name  string
	Value any
}

type QueryOptions struct {
	UseLegacySQL bool
	Parameters   []QueryParameter
	// Location of the job. Empty means the default of the project.
	Location string
}

type QueryOption func(*QueryOptions)

func WithLegacySQL() QueryOption {
	return func(o *QueryOptions) {
		o.UseLegacySQL = true
	}
}

func WithQueryParameter(name string, value any) QueryOption {
	return func(o *QueryOptions) {
		o.Parameters = append(o.Parameters, QueryParameter{Name: name, Value: value})
	}
}

func WithQueryLocation(location string) QueryOption {
	return func(o *QueryOptions) {
		o.Location = location
	}
}

func NewQueryOptions(options ...QueryOption) *QueryOptions {
	opts := &QueryOptions{}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}

// QueryResult is a tabular query result with the ID of the job that produced it
type QueryResult struct {
	JobID  types.BQJobID
	Schema bigquery.Schema
	Rows   []Row
}

func (x *QueryResult) Len() int { return len(x.Rows) }

// TableFunction describes a table valued function (report) in a dataset
type TableFunction struct {
	FunctionName string               `json:"FunctionName"`
	ReportName   string               `json:"ReportName"`
	ReportID     string               `json:"ReportId"`
	Params       []TableFunctionParam `json:"Params"`
}

type TableFunctionParam struct {
	Position int64  `json:"Position"`
	Name     string `json:"Name"`
	Type     string `json:"Type"`
}

// TableFunctionArg is an argument passed to a table function call
type TableFunctionArg struct {
	Position int64  `json:"Position"`
	Type     string `json:"Type"`
	Value    string `json:"Value"`
}

// TableFunctionMeta is used to build a CREATE TABLE FUNCTION statement
type TableFunctionMeta struct {
	ReportID string               `json:"ReportId"`
	Name     string               `json:"Name"`
	Params   []TableFunctionParam `json:"Params"`
}

type WriteDisposition string

const (
	WriteTruncate WriteDisposition = "WRITE_TRUNCATE"
	WriteAppend   WriteDisposition = "WRITE_APPEND"
)

type LoadOptions struct {
	WriteDisposition WriteDisposition
	// IncludeLoadedAt adds a "loaded_at" field with the load time to every record
	IncludeLoadedAt bool
	// BaseTable is a table whose schema is preferred over the destination table
	BaseTable types.BQTableID
	// ForceSchema ignores existing table schemas and uses only the inferred one
	ForceSchema bool
	// ForceType sets the type of every inferred column: STRING, INTEGER, FLOAT or BOOLEAN. Columns of an existing schema keep their type.
	ForceType bigquery.FieldType
}

type LoadResult struct {
	JobID  types.BQJobID
	Schema bigquery.Schema
	Rows   int
}
