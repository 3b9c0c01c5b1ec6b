package handler_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/infra/bq"
)

func TestRunQuery(t *testing.T) {
	mock := bq.NewGeneralMock()
	mock.Results = []*model.QueryResult{
		{Rows: []model.Row{{"n": int64(1)}, {"n": int64(2)}, {"n": int64(3)}}},
	}
	h := handler.NewBigQuery(mock, "test-project")

	resp := gt.R1(h.RunQuery(context.Background(), "SELECT n FROM t",
		model.WithLegacySQL(),
		model.WithQueryParameter("limit", 3),
	)).NoError(t)

	gt.Equal(t, resp.Len(), 3)
	gt.V(t, resp.JobID).NotEqual("")
	gt.A(t, mock.Queries).Length(1).At(0, func(t testing.TB, v struct {
		Query   string
		Options *model.QueryOptions
	}) {
		gt.True(t, v.Options.UseLegacySQL)
		gt.A(t, v.Options.Parameters).Length(1)
	})
}

func TestRunQueryEmpty(t *testing.T) {
	h := handler.NewBigQuery(bq.NewGeneralMock(), "test-project")

	_, err := h.RunQuery(context.Background(), "  ")
	gt.Error(t, err).Is(types.ErrInvalidOption)

	var opErr *types.ServiceOperationError
	gt.True(t, errors.As(err, &opErr))
	gt.Equal(t, opErr.Service, types.ServiceBigQuery)
	gt.Equal(t, opErr.Operation, "RunQuery")
}

func TestRunQueryBackendError(t *testing.T) {
	mock := &bq.Mock{
		MockQuery: func(ctx context.Context, query string, opts *model.QueryOptions) (*model.QueryResult, error) {
			return nil, errors.New("boom")
		},
	}
	h := handler.NewBigQuery(mock, "test-project")

	_, err := h.RunQuery(context.Background(), "SELECT 1")
	var opErr *types.ServiceOperationError
	gt.True(t, errors.As(err, &opErr))
	gt.Equal(t, opErr.Err.Error(), "boom")
}

func TestRetrieveJobDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("no job IDs", func(t *testing.T) {
		mock := bq.NewGeneralMock()
		h := handler.NewBigQuery(mock, "test-project")
		rows := gt.R1(h.RetrieveJobDetails(ctx, "", nil)).NoError(t)
		gt.A(t, rows).Length(0)
		gt.A(t, mock.Queries).Length(0)
	})

	t.Run("job IDs are passed as parameter", func(t *testing.T) {
		mock := bq.NewGeneralMock()
		h := handler.NewBigQuery(mock, "test-project")
		gt.R1(h.RetrieveJobDetails(ctx, "", []types.BQJobID{"job-1", "job-2"})).NoError(t)

		gt.A(t, mock.Queries).Length(1)
		q := mock.Queries[0]
		gt.True(t, strings.Contains(q.Query, "`region-us`.INFORMATION_SCHEMA.JOBS_BY_PROJECT"))
		gt.False(t, strings.Contains(q.Query, "job-1"))
		gt.A(t, q.Options.Parameters).Length(1).At(0, func(t testing.TB, v model.QueryParameter) {
			gt.Equal(t, v.Name, "job_ids")
			gt.Equal(t, v.Value, any([]string{"job-1", "job-2"}))
		})
	})

	t.Run("invalid region", func(t *testing.T) {
		h := handler.NewBigQuery(bq.NewGeneralMock(), "test-project")
		_, err := h.RetrieveJobDetails(ctx, "us`; DROP", []types.BQJobID{"job-1"})
		gt.Error(t, err).Is(types.ErrInvalidOption)
	})
}

func TestTableExists(t *testing.T) {
	ctx := context.Background()
	mock := bq.NewGeneralMock()
	mock.Tables["ds.exists"] = &bigquery.TableMetadata{}
	h := handler.NewBigQuery(mock, "test-project")

	gt.True(t, gt.R1(h.TableExists(ctx, "ds", "exists")).NoError(t))
	gt.False(t, gt.R1(h.TableExists(ctx, "ds", "missing")).NoError(t))
}

func TestGetTable(t *testing.T) {
	ctx := context.Background()
	mock := bq.NewGeneralMock()
	h := handler.NewBigQuery(mock, "test-project")

	gt.R1(h.LoadRecords(ctx, "ds", "tbl", []map[string]any{
		{"name": "blue"},
		{"name": "orange"},
	}, model.LoadOptions{})).NoError(t)

	rows := gt.R1(h.GetTable(ctx, "ds", "tbl")).NoError(t)
	gt.A(t, rows).Length(2)
}

func TestListTableFunctions(t *testing.T) {
	mock := bq.NewGeneralMock()
	mock.Results = []*model.QueryResult{
		{Rows: []model.Row{
			{"specific_name": "DL_Report_1", "report_name": "Sales", "ordinal_position": int64(2), "parameter_name": "end_date", "data_type": "DATE"},
			{"specific_name": "DL_Report_1", "report_name": "Sales", "ordinal_position": int64(1), "parameter_name": "start_date", "data_type": "DATE"},
			{"specific_name": "DL_Report_2", "report_name": "Stock", "ordinal_position": nil, "parameter_name": nil, "data_type": nil},
		}},
	}
	h := handler.NewBigQuery(mock, "test-project")

	fns := gt.R1(h.ListTableFunctions(context.Background(), "reports")).NoError(t)
	gt.A(t, fns).Length(2).
		At(0, func(t testing.TB, v *model.TableFunction) {
			gt.Equal(t, v.ReportID, "1")
			gt.Equal(t, v.ReportName, "Sales")
			gt.A(t, v.Params).Length(2).At(0, func(t testing.TB, p model.TableFunctionParam) {
				gt.Equal(t, p.Name, "start_date")
			})
		}).
		At(1, func(t testing.TB, v *model.TableFunction) {
			gt.Equal(t, v.ReportID, "2")
			gt.A(t, v.Params).Length(0)
		})

	gt.True(t, handler.TableFunctionExists(fns, "2"))
	gt.False(t, handler.TableFunctionExists(fns, "3"))
	gt.True(t, strings.Contains(mock.Queries[0].Query, "`test-project.reports.INFORMATION_SCHEMA.ROUTINES`"))
}

func TestListTableFunctionsInvalidDataset(t *testing.T) {
	h := handler.NewBigQuery(bq.NewGeneralMock(), "test-project")
	_, err := h.ListTableFunctions(context.Background(), "reports`; --")
	gt.Error(t, err).Is(types.ErrInvalidOption)
}

func TestFormatParams(t *testing.T) {
	testCases := map[string]struct {
		input  model.TableFunctionArg
		expect model.TableFunctionArg
	}{
		"date with time": {
			input:  model.TableFunctionArg{Type: "DATE", Value: "2024-03-01 10:20:30"},
			expect: model.TableFunctionArg{Type: "DATE", Value: "2024-03-01"},
		},
		"date with slash": {
			input:  model.TableFunctionArg{Type: "date", Value: "03/01/2024"},
			expect: model.TableFunctionArg{Type: "date", Value: "2024-03-01"},
		},
		"unparseable date": {
			input:  model.TableFunctionArg{Type: "DATE", Value: "yesterday"},
			expect: model.TableFunctionArg{Type: "DATE", Value: "yesterday"},
		},
		"text": {
			input:  model.TableFunctionArg{Type: "TEXT", Value: "abc"},
			expect: model.TableFunctionArg{Type: "STRING", Value: "abc"},
		},
		"int64": {
			input:  model.TableFunctionArg{Type: "INT64", Value: "10"},
			expect: model.TableFunctionArg{Type: "INT64", Value: "10"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got := handler.FormatParams([]model.TableFunctionArg{tc.input})
			gt.A(t, got).Length(1)
			gt.Equal(t, got[0], tc.expect)
		})
	}
}

func TestRunTableFunction(t *testing.T) {
	mock := bq.NewGeneralMock()
	h := handler.NewBigQuery(mock, "test-project")

	gt.R1(h.RunTableFunction(context.Background(), "reports", "DL_Report_1", []model.TableFunctionArg{
		{Position: 2, Type: "TEXT", Value: "tokyo"},
		{Position: 1, Type: "DATE", Value: "2024/03/01 00:00:00"},
	})).NoError(t)

	q := mock.Queries[0]
	gt.Equal(t, q.Query, "SELECT * FROM `test-project.reports.DL_Report_1`(CAST(@p1 AS DATE), @p2)")
	gt.A(t, q.Options.Parameters).Length(2).
		At(0, func(t testing.TB, v model.QueryParameter) {
			gt.Equal(t, v.Value, any("2024-03-01"))
		}).
		At(1, func(t testing.TB, v model.QueryParameter) {
			gt.Equal(t, v.Value, any("tokyo"))
		})

	_, err := h.RunTableFunction(context.Background(), "reports", "DL_Report_1", []model.TableFunctionArg{
		{Position: 1, Type: "DATE) --", Value: "x"},
	})
	gt.Error(t, err).Is(types.ErrInvalidOption)
}

func TestTableFunctionDDL(t *testing.T) {
	h := handler.NewBigQuery(bq.NewGeneralMock(), "test-project")

	ddl := gt.R1(h.TableFunctionDDL("reports", model.TableFunctionMeta{
		ReportID: "7",
		Name:     `Monthly "sales"`,
		Params: []model.TableFunctionParam{
			{Position: 2, Name: "end date", Type: "date"},
			{Position: 1, Name: "start_date", Type: "DATE"},
		},
	}, "SELECT 1")).NoError(t)

	gt.True(t, strings.HasPrefix(ddl, "CREATE OR REPLACE TABLE FUNCTION `test-project.reports.DL_Report_7`(start_date DATE, end_date DATE)"))
	gt.True(t, strings.Contains(ddl, `OPTIONS(description = "Monthly \"sales\"")`))

	_, err := h.TableFunctionDDL("reports", model.TableFunctionMeta{ReportID: "7; DROP"}, "SELECT 1")
	gt.Error(t, err).Is(types.ErrInvalidOption)
}

func TestSanitizeRecord(t *testing.T) {
	testCases := map[string]struct {
		src    map[string]any
		expect map[string]any
	}{
		"invalid characters": {
			src:    map[string]any{"user-name": "a", "$price": 1.0, "\ufeffid": "x", `"quoted"`: "q"},
			expect: map[string]any{"user_name": "a", "price": 1.0, "id": "x", "quoted": "q"},
		},
		"case insensitive duplicate": {
			src:    map[string]any{"Name": "first", "name": "second"},
			expect: map[string]any{"Name": "first"},
		},
		"nil and empty values": {
			src: map[string]any{
				"field":  nil,
				"empty":  map[string]any{},
				"array":  []any{},
				"nested": map[string]any{"sub": nil, "color": "blue"},
			},
			expect: map[string]any{"nested": map[string]any{"color": "blue"}},
		},
		"carriage return": {
			src:    map[string]any{"text": "a\r\nb"},
			expect: map[string]any{"text": "a\nb"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			gt.Equal(t, handler.SanitizeRecord(tc.src), tc.expect)
		})
	}
}

func TestCoerceRecord(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "id", Type: bigquery.StringFieldType},
		{Name: "tags", Type: bigquery.StringFieldType, Repeated: true},
		{Name: "detail", Type: bigquery.RecordFieldType, Schema: bigquery.Schema{
			{Name: "payload", Type: bigquery.StringFieldType},
		}},
	}
	rec := map[string]any{
		"id":     12.0,
		"tags":   []any{1.0, "b"},
		"detail": map[string]any{"payload": map[string]any{"k": "v"}},
		"other":  true,
	}

	handler.CoerceRecord(context.Background(), rec, schema)
	gt.Equal(t, rec["id"], any("12"))
	gt.Equal(t, rec["tags"], any([]any{"1", "b"}))
	gt.Equal(t, rec["detail"], any(map[string]any{"payload": `{"k":"v"}`}))
	gt.Equal(t, rec["other"], any(true))
}

func TestCoerceRecordTypes(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "n", Type: bigquery.IntegerFieldType},
		{Name: "ratio", Type: bigquery.FloatFieldType},
		{Name: "ok", Type: bigquery.BooleanFieldType},
		{Name: "ids", Type: bigquery.IntegerFieldType, Repeated: true},
		{Name: "ts", Type: bigquery.TimestampFieldType},
		{Name: "Upper", Type: bigquery.IntegerFieldType},
	}
	rec := map[string]any{
		"n":     3.0,
		"ratio": "0.5",
		"ok":    "true",
		"ids":   []any{1.0, "2", "x"},
		"ts":    "2024-01-01T00:00:00Z",
		"upper": "7",
	}

	handler.CoerceRecord(context.Background(), rec, schema)
	gt.Equal(t, rec["n"], any(int64(3)))
	gt.Equal(t, rec["ratio"], any(0.5))
	gt.Equal(t, rec["ok"], any(true))
	gt.Equal(t, rec["ids"], any([]any{int64(1), int64(2)}))
	gt.Equal(t, rec["ts"], any("2024-01-01T00:00:00Z"))
	gt.Equal(t, rec["upper"], any(int64(7)))

	broken := map[string]any{"n": "not a number"}
	handler.CoerceRecord(context.Background(), broken, schema)
	_, ok := broken["n"]
	gt.False(t, ok)
}

func TestLoadRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("truncate with loaded_at", func(t *testing.T) {
		mock := bq.NewGeneralMock()
		h := handler.NewBigQuery(mock, "test-project")
		h.SetNow(func() time.Time { return now })

		resp := gt.R1(h.LoadRecords(ctx, "ds", "events", []map[string]any{
			{"user-name": "blue", "count": 1.0},
			{"user-name": "orange", "empty": nil},
		}, model.LoadOptions{IncludeLoadedAt: true})).NoError(t)

		gt.Equal(t, resp.Rows, 2)
		gt.Equal(t, resp.JobID, types.BQJobID("mock-job-1"))
		gt.True(t, mock.Datasets["ds"])
		gt.A(t, mock.Loaded).Length(1).At(0, func(t testing.TB, v *bq.MockLoadedData) {
			gt.Equal(t, v.Disposition, model.WriteTruncate)
			gt.Equal(t, v.Records[0]["user_name"], any("blue"))
			gt.Equal(t, v.Records[1][handler.LoadedAtField], any(now))
			_, ok := v.Records[1]["empty"]
			gt.False(t, ok)
		})

		names := map[string]bool{}
		for _, f := range resp.Schema {
			names[f.Name] = true
		}
		gt.M(t, names).HasKey("user_name").HasKey("count").HasKey(handler.LoadedAtField)
	})

	t.Run("append widens existing table", func(t *testing.T) {
		mock := bq.NewGeneralMock()
		mock.Tables["ds.events"] = &bigquery.TableMetadata{
			Schema: bigquery.Schema{{Name: "id", Type: bigquery.StringFieldType}},
			ETag:   "etag-1",
		}
		h := handler.NewBigQuery(mock, "test-project")

		gt.R1(h.LoadRecords(ctx, "ds", "events", []map[string]any{
			{"id": 100.0, "color": "blue"},
		}, model.LoadOptions{WriteDisposition: model.WriteAppend})).NoError(t)

		gt.A(t, mock.UpdatedTable).Length(1).At(0, func(t testing.TB, v struct {
			Dataset types.BQDatasetID
			Table   types.BQTableID
			MD      bigquery.TableMetadataToUpdate
			ETag    string
		}) {
			gt.Equal(t, v.ETag, "etag-1")
			gt.Equal(t, len(v.MD.Schema), 2)
		})
		gt.Equal(t, mock.Loaded[0].Records[0]["id"], any("100"))
		gt.Equal(t, mock.Loaded[0].Disposition, model.WriteAppend)
	})

	t.Run("temp table takes schema of base table", func(t *testing.T) {
		mock := bq.NewGeneralMock()
		mock.Tables["ds.events"] = &bigquery.TableMetadata{
			Schema: bigquery.Schema{{Name: "id", Type: bigquery.StringFieldType}},
		}
		h := handler.NewBigQuery(mock, "test-project")

		resp := gt.R1(h.LoadRecords(ctx, "ds", "events_temp", []map[string]any{
			{"id": 1.0, "extra": "x"},
		}, model.LoadOptions{})).NoError(t)

		gt.Equal(t, len(resp.Schema), 2)
		gt.Equal(t, mock.Loaded[0].Table, types.BQTableID("events_temp"))
		gt.A(t, mock.UpdatedTable).Length(1).At(0, func(t testing.TB, v struct {
			Dataset types.BQDatasetID
			Table   types.BQTableID
			MD      bigquery.TableMetadataToUpdate
			ETag    string
		}) {
			gt.Equal(t, v.Table, types.BQTableID("events"))
		})
	})

	t.Run("append keeps types of existing columns", func(t *testing.T) {
		mock := bq.NewGeneralMock()
		mock.Tables["ds.events"] = &bigquery.TableMetadata{
			Schema: bigquery.Schema{
				{Name: "n", Type: bigquery.IntegerFieldType},
				{Name: "ts", Type: bigquery.TimestampFieldType},
				{Name: "amount", Type: bigquery.NumericFieldType},
			},
			ETag: "etag-1",
		}
		h := handler.NewBigQuery(mock, "test-project")

		resp := gt.R1(h.LoadRecords(ctx, "ds", "events", []map[string]any{
			{"n": float64(1), "ts": "2024-01-01T00:00:00Z", "amount": "12.30", "memo": "first"},
		}, model.LoadOptions{WriteDisposition: model.WriteAppend})).NoError(t)

		gt.A(t, resp.Schema).Length(4).
			At(0, func(t testing.TB, v *bigquery.FieldSchema) {
				gt.Equal(t, v.Type, bigquery.IntegerFieldType)
			}).
			At(1, func(t testing.TB, v *bigquery.FieldSchema) {
				gt.Equal(t, v.Type, bigquery.TimestampFieldType)
			}).
			At(2, func(t testing.TB, v *bigquery.FieldSchema) {
				gt.Equal(t, v.Type, bigquery.NumericFieldType)
			}).
			At(3, func(t testing.TB, v *bigquery.FieldSchema) {
				gt.Equal(t, v.Name, "memo")
			})

		rec := mock.Loaded[0].Records[0]
		gt.Equal(t, rec["n"], any(int64(1)))
		gt.Equal(t, rec["ts"], any("2024-01-01T00:00:00Z"))
		gt.Equal(t, rec["amount"], any("12.30"))
		gt.A(t, mock.UpdatedTable).Length(1)
	})

	t.Run("force type", func(t *testing.T) {
		mock := bq.NewGeneralMock()
		h := handler.NewBigQuery(mock, "test-project")

		resp := gt.R1(h.LoadRecords(ctx, "ds", "raw", []map[string]any{
			{"n": 1.5, "ok": true, "nested": map[string]any{"x": 2.0}},
		}, model.LoadOptions{ForceType: bigquery.StringFieldType})).NoError(t)

		for _, f := range resp.Schema {
			if f.Name == "nested" {
				gt.Equal(t, f.Type, bigquery.RecordFieldType)
				gt.Equal(t, f.Schema[0].Type, bigquery.StringFieldType)
				continue
			}
			gt.Equal(t, f.Type, bigquery.StringFieldType)
		}
		rec := mock.Loaded[0].Records[0]
		gt.Equal(t, rec["n"], any("1.5"))
		gt.Equal(t, rec["ok"], any("true"))
		gt.Equal(t, rec["nested"], any(map[string]any{"x": "2"}))
	})

	t.Run("invalid input", func(t *testing.T) {
		h := handler.NewBigQuery(bq.NewGeneralMock(), "test-project")
		_, err := h.LoadRecords(ctx, "ds", "events", []map[string]any{{"a": "b"}}, model.LoadOptions{ForceType: bigquery.TimestampFieldType})
		gt.Error(t, err).Is(types.ErrInvalidOption)

		_, err = h.LoadRecords(ctx, "ds", "events", nil, model.LoadOptions{})
		gt.Error(t, err).Is(types.ErrInvalidOption)

		_, err = h.LoadRecords(ctx, "ds", "events", []map[string]any{{"a": "b"}}, model.LoadOptions{WriteDisposition: "WRITE_EMPTY"})
		gt.Error(t, err).Is(types.ErrInvalidOption)
	})
}
