package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/bqs"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// LoadedAtField is added to every record when LoadOptions.IncludeLoadedAt is set
const LoadedAtField = "loaded_at"

const tempTableSuffix = "_temp"

var fieldNameReplacer = strings.NewReplacer("-", "_", "\r", "", " ", "", "$", "", "\ufeff", "", `"`, "")

// LoadRecords loads JSON like records into a table with a load job. Field names are sanitized and the schema is inferred. When the base or destination table exists, its columns keep their types, values are cast to them and only new fields are added. The dataset is created if missing.
func (x *BigQuery) LoadRecords(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, records []map[string]any, opts model.LoadOptions) (*model.LoadResult, error) {
	const op = "LoadRecords"
	if dataset == "" || table == "" {
		return nil, invalidInput(types.ServiceBigQuery, op, "dataset and table are required", goerr.V("dataset", dataset), goerr.V("table", table))
	}
	if len(records) == 0 {
		return nil, invalidInput(types.ServiceBigQuery, op, "no records to load", goerr.V("table", table))
	}

	disposition := opts.WriteDisposition
	switch disposition {
	case "":
		disposition = model.WriteTruncate
	case model.WriteTruncate, model.WriteAppend:
	default:
		return nil, invalidInput(types.ServiceBigQuery, op, "unknown write disposition", goerr.V("disposition", disposition))
	}

	switch opts.ForceType {
	case "", bigquery.StringFieldType, bigquery.IntegerFieldType, bigquery.FloatFieldType, bigquery.BooleanFieldType:
	default:
		return nil, invalidInput(types.ServiceBigQuery, op, "force type must be STRING, INTEGER, FLOAT or BOOLEAN", goerr.V("type", opts.ForceType))
	}

	logger := utils.CtxLogger(ctx).With("dataset", dataset, "table", table)

	prepared := make([]map[string]any, 0, len(records))
	loadedAt := x.now().UTC()
	for _, r := range records {
		rec := sanitizeRecord(r)
		if opts.IncludeLoadedAt {
			rec[LoadedAtField] = loadedAt
		}
		prepared = append(prepared, rec)
	}

	if err := x.backend.EnsureDataset(ctx, dataset); err != nil {
		return nil, opError(types.ServiceBigQuery, op, err)
	}

	var base *bigquery.TableMetadata
	baseTable := baseTableOf(table, opts)
	if !opts.ForceSchema {
		for _, candidate := range []types.BQTableID{baseTable, table} {
			if candidate == "" {
				continue
			}
			md, err := x.backend.GetMetadata(ctx, dataset, candidate)
			if err != nil {
				return nil, opError(types.ServiceBigQuery, op, err)
			}
			if md != nil {
				logger.Debug("using schema of existing table", "source", candidate)
				base = md
				break
			}
		}
	}

	inferred, err := inferSchema(prepared)
	if err != nil {
		return nil, opError(types.ServiceBigQuery, op, err)
	}
	if opts.ForceType != "" {
		inferred = forceFieldType(inferred, opts.ForceType)
	}

	merged := inferred
	if base != nil {
		merged = extendSchema(base.Schema, inferred)
	}
	for _, rec := range prepared {
		coerceRecord(ctx, rec, merged)
	}

	if disposition == model.WriteAppend {
		if err := x.widenTable(ctx, dataset, table, merged); err != nil {
			return nil, opError(types.ServiceBigQuery, op, err)
		}
	}

	jobID, err := x.backend.Load(ctx, dataset, table, merged, prepared, disposition)
	if err != nil {
		return nil, opError(types.ServiceBigQuery, op, err)
	}
	logger.Info("records loaded", "jobID", jobID, "rows", len(prepared), "disposition", disposition)

	if baseTable != "" && baseTable != table {
		if err := x.widenTable(ctx, dataset, baseTable, merged); err != nil {
			logger.Warn("failed to update schema of base table", "base", baseTable, utils.ErrLog(err))
		}
	}

	return &model.LoadResult{
		JobID:  jobID,
		Schema: merged,
		Rows:   len(prepared),
	}, nil
}

func baseTableOf(table types.BQTableID, opts model.LoadOptions) types.BQTableID {
	if opts.BaseTable != "" {
		return opts.BaseTable
	}
	if s := table.String(); strings.HasSuffix(s, tempTableSuffix) {
		return types.BQTableID(strings.TrimSuffix(s, tempTableSuffix))
	}
	return ""
}

// widenTable updates the schema of an existing table if schema adds fields. A missing table is left to the load job.
func (x *BigQuery) widenTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, schema bigquery.Schema) error {
	md, err := x.backend.GetMetadata(ctx, dataset, table)
	if err != nil {
		return err
	}
	if md == nil {
		return nil
	}

	merged, err := bqs.Merge(md.Schema, schema)
	if err != nil {
		return goerr.Wrap(err, "failed to merge schema", goerr.V("table", table))
	}
	if bqs.Equal(md.Schema, merged) {
		return nil
	}

	utils.CtxLogger(ctx).Info("updating table schema", "dataset", dataset, "table", table)
	return x.backend.UpdateTable(ctx, dataset, table, bigquery.TableMetadataToUpdate{Schema: merged}, md.ETag)
}

func inferSchema(records []map[string]any) (bigquery.Schema, error) {
	var merged bigquery.Schema
	for _, r := range records {
		schema, err := bqs.Infer(r)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to infer schema", goerr.V("record", r))
		}

		merged, err = bqs.Merge(merged, schema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to merge schema")
		}
	}

	return merged, nil
}

// sanitizeRecord returns a copy of r that BigQuery accepts. Field names lose characters invalid in column names and duplicates differing only in case are dropped. Nil values and empty maps or slices are removed because their type can not be inferred.
func sanitizeRecord(r map[string]any) map[string]any {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(r))
	seen := map[string]bool{}
	for _, k := range keys {
		name := fieldNameReplacer.Replace(k)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if seen[lower] {
			continue
		}

		v, ok := sanitizeValue(r[k])
		if !ok {
			continue
		}
		seen[lower] = true
		out[name] = v
	}
	return out
}

func sanitizeValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return strings.ReplaceAll(t, "\r", ""), true
	case map[string]any:
		m := sanitizeRecord(t)
		if len(m) == 0 {
			return nil, false
		}
		return m, true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if sv, ok := sanitizeValue(e); ok {
				out = append(out, sv)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return v, true
	}
}

// extendSchema returns base with the fields of inferred that base lacks. Types of existing fields are kept, names are compared case-insensitively as BigQuery does.
func extendSchema(base, inferred bigquery.Schema) bigquery.Schema {
	out := make(bigquery.Schema, 0, len(base)+len(inferred))
	index := make(map[string]int, len(base))
	for i, f := range base {
		c := *f
		out = append(out, &c)
		index[strings.ToLower(f.Name)] = i
	}

	for _, f := range inferred {
		i, ok := index[strings.ToLower(f.Name)]
		if !ok {
			out = append(out, f)
			continue
		}
		if out[i].Type == bigquery.RecordFieldType && f.Type == bigquery.RecordFieldType {
			out[i].Schema = extendSchema(out[i].Schema, f.Schema)
		}
	}
	return out
}

// forceFieldType sets every leaf field of schema to t
func forceFieldType(schema bigquery.Schema, t bigquery.FieldType) bigquery.Schema {
	out := make(bigquery.Schema, 0, len(schema))
	for _, f := range schema {
		c := *f
		if c.Type == bigquery.RecordFieldType {
			c.Schema = forceFieldType(c.Schema, t)
		} else {
			c.Type = t
		}
		out = append(out, &c)
	}
	return out
}

// coerceRecord casts values in rec to the types of their fields in schema. A value that can not be cast is dropped and loaded as NULL.
func coerceRecord(ctx context.Context, rec map[string]any, schema bigquery.Schema) {
	fields := make(map[string]*bigquery.FieldSchema, len(schema))
	for _, f := range schema {
		fields[strings.ToLower(f.Name)] = f
	}

	for name, v := range rec {
		f, ok := fields[strings.ToLower(name)]
		if !ok || v == nil {
			continue
		}

		if f.Type == bigquery.RecordFieldType {
			switch t := v.(type) {
			case map[string]any:
				coerceRecord(ctx, t, f.Schema)
			case []any:
				for _, e := range t {
					if m, ok := e.(map[string]any); ok {
						coerceRecord(ctx, m, f.Schema)
					}
				}
			}
			continue
		}

		if arr, ok := v.([]any); ok && f.Repeated {
			casted := make([]any, 0, len(arr))
			for _, e := range arr {
				if c, ok := castValue(e, f.Type); ok {
					casted = append(casted, c)
				}
			}
			rec[name] = casted
			continue
		}

		c, ok := castValue(v, f.Type)
		if !ok {
			utils.CtxLogger(ctx).Warn("dropping value that does not match column type", "field", name, "type", f.Type, "value", v)
			delete(rec, name)
			continue
		}
		rec[name] = c
	}
}

// castValue converts v for a column of type t. Types other than STRING, INTEGER, FLOAT and BOOLEAN are passed through and parsed by the load job.
func castValue(v any, t bigquery.FieldType) (any, bool) {
	switch t {
	case bigquery.StringFieldType:
		return stringify(v), true

	case bigquery.IntegerFieldType:
		switch n := v.(type) {
		case bool:
			if n {
				return int64(1), true
			}
			return int64(0), true
		case string:
			s := strings.TrimSpace(n)
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, true
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return int64(f), true
			}
			return nil, false
		}
		if f, ok := toFloat(v); ok {
			return int64(f), true
		}
		return nil, false

	case bigquery.FloatFieldType:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return f, err == nil
		}
		return toFloat(v)

	case bigquery.BooleanFieldType:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			return parsed, err == nil
		}
		if f, ok := toFloat(v); ok {
			return f != 0, true
		}
		return nil, false
	}

	return v, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case map[string]any, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	default:
		return fmt.Sprint(t)
	}
}
