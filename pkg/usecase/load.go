package usecase

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// LoadObject loads JSON records of a Cloud Storage object into a BigQuery table. The object is a stream of JSON objects (NDJSON) or a JSON array of objects, gzip compressed if its name ends with ".gz".
func (x *UseCase) LoadObject(ctx context.Context, url types.CSUrl, dataset types.BQDatasetID, table types.BQTableID, opts model.LoadOptions) (*model.LoadResult, error) {
	bucket, name, err := url.Parse()
	if err != nil {
		return nil, err
	}

	storage, err := x.agg.Storage(ctx)
	if err != nil {
		return nil, err
	}
	bq, err := x.agg.BigQuery(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := storage.Download(ctx, bucket, name)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(raw, strings.HasSuffix(name.String(), ".gz"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode object", goerr.V("url", url))
	}
	utils.CtxLogger(ctx).Info("object decoded", "url", url, "records", len(records))

	return bq.LoadRecords(ctx, dataset, table, records, opts)
}

func decodeRecords(raw []byte, gzipped bool) ([]map[string]any, error) {
	var reader io.Reader = bytes.NewReader(raw)
	if gzipped {
		r, err := gzip.NewReader(reader)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create gzip reader")
		}
		defer utils.SafeClose(r)
		reader = r
	}

	var records []map[string]any
	decoder := json.NewDecoder(reader)
	for decoder.More() {
		var v any
		if err := decoder.Decode(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode JSON", goerr.V("decoded", len(records)))
		}

		switch t := v.(type) {
		case map[string]any:
			records = append(records, t)
		case []any:
			for _, e := range t {
				m, ok := e.(map[string]any)
				if !ok {
					return nil, goerr.Wrap(types.ErrInvalidOption, "array element is not a JSON object", goerr.V("index", len(records)))
				}
				records = append(records, m)
			}
		default:
			return nil, goerr.Wrap(types.ErrInvalidOption, "record is not a JSON object", goerr.V("index", len(records)))
		}
	}

	return records, nil
}
