package usecase_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra"
	"github.com/secmon-lab/gcu/pkg/infra/bq"
	"github.com/secmon-lab/gcu/pkg/infra/cs"
	"github.com/secmon-lab/gcu/pkg/usecase"
)

func TestDecodeRecords(t *testing.T) {
	t.Run("ndjson", func(t *testing.T) {
		records := gt.R1(usecase.DecodeRecords([]byte("{\"a\":1}\n{\"a\":2}\n"), false)).NoError(t)
		gt.A(t, records).Length(2).At(1, func(t testing.TB, v map[string]any) {
			gt.Equal(t, v["a"], any(float64(2)))
		})
	})

	t.Run("array", func(t *testing.T) {
		records := gt.R1(usecase.DecodeRecords([]byte(`[{"a":1},{"b":"x"}]`), false)).NoError(t)
		gt.A(t, records).Length(2)
	})

	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		gt.R1(w.Write([]byte(`{"a":1}`))).NoError(t)
		gt.NoError(t, w.Close())

		records := gt.R1(usecase.DecodeRecords(buf.Bytes(), true)).NoError(t)
		gt.A(t, records).Length(1)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := usecase.DecodeRecords([]byte(`{"a":1} 5`), false)
		gt.Error(t, err).Is(types.ErrInvalidOption)

		_, err = usecase.DecodeRecords([]byte(`[{"a":1}, "x"]`), false)
		gt.Error(t, err).Is(types.ErrInvalidOption)
	})

	t.Run("broken JSON", func(t *testing.T) {
		_, err := usecase.DecodeRecords([]byte(`{"a":`), false)
		gt.Error(t, err)
	})
}

func TestLoadObject(t *testing.T) {
	ctx := context.Background()
	csMock := cs.NewGeneralMock()
	bqMock := bq.NewGeneralMock()
	agg := newAggregator(t,
		infra.WithCloudStorage(infra.Static[interfaces.CloudStorage](csMock)),
		infra.WithBigQuery(infra.Static[interfaces.BigQuery](bqMock)),
	)

	gt.NoError(t, csMock.CreateBucket(ctx, "test-project", "src"))
	obj := model.CloudStorageObject{Bucket: "src", Name: "logs/2024/01.json"}
	gt.NoError(t, csMock.Write(ctx, obj, []byte("{\"user\":\"alice\",\"count\":1}\n{\"user\":\"bob\",\"count\":2}\n"), "application/json"))

	uc := usecase.New(agg)
	result := gt.R1(uc.LoadObject(ctx, obj.URL(), "logs", "events", model.LoadOptions{})).NoError(t)
	gt.Equal(t, result.Rows, 2)

	gt.A(t, bqMock.Loaded).Length(1).At(0, func(t testing.TB, v *bq.MockLoadedData) {
		gt.Equal(t, v.Dataset, types.BQDatasetID("logs"))
		gt.Equal(t, v.Table, types.BQTableID("events"))
		gt.Equal(t, v.Disposition, model.WriteTruncate)
		gt.A(t, v.Records).Length(2)
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := uc.LoadObject(ctx, "gs://src/nothing.json", "logs", "events", model.LoadOptions{})
		gt.Error(t, err).Is(types.ErrNotFound)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := uc.LoadObject(ctx, "s3://src/a.json", "logs", "events", model.LoadOptions{})
		gt.Error(t, err).Is(types.ErrInvalidOption)
	})
}
