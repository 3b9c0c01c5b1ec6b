package bq

import (
	"bytes"
	"context"
	"encoding/json"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/apierr"
	"github.com/secmon-lab/gcu/pkg/utils"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Client struct {
	bqClient  *bigquery.Client
	projectID types.GoogleProjectID
}

var _ interfaces.BigQuery = &Client{}

func New(ctx context.Context, projectID types.GoogleProjectID, options ...option.ClientOption) (*Client, error) {
	bqClient, err := bigquery.NewClient(ctx, projectID.String(), options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create bigquery client", goerr.V("projectID", projectID))
	}

	return &Client{
		bqClient:  bqClient,
		projectID: projectID,
	}, nil
}

// Query implements interfaces.BigQuery. It waits for the job and reads all rows.
func (x *Client) Query(ctx context.Context, query string, opts *model.QueryOptions) (*model.QueryResult, error) {
	if opts == nil {
		opts = model.NewQueryOptions()
	}

	q := x.bqClient.Query(query)
	q.UseLegacySQL = opts.UseLegacySQL
	if opts.Location != "" {
		q.Location = opts.Location
	}
	for _, p := range opts.Parameters {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Name: p.Name, Value: p.Value})
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query")
	}
	jobID := types.BQJobID(job.ID())

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to wait query job", goerr.V("jobID", jobID))
	}
	if err := status.Err(); err != nil {
		return nil, goerr.Wrap(err, "query job failed", goerr.V("jobID", jobID))
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read query result", goerr.V("jobID", jobID))
	}

	rows, err := readRows(it)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to iterate query result", goerr.V("jobID", jobID))
	}

	utils.CtxLogger(ctx).Debug("query done", "jobID", jobID, "rows", len(rows))

	return &model.QueryResult{
		JobID:  jobID,
		Schema: it.Schema,
		Rows:   rows,
	}, nil
}

// ReadTable implements interfaces.BigQuery.
func (x *Client) ReadTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) ([]model.Row, error) {
	it := x.bqClient.Dataset(dataset.String()).Table(table.String()).Read(ctx)
	rows, err := readRows(it)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read table", goerr.V("dataset", dataset), goerr.V("table", table))
	}
	return rows, nil
}

func readRows(it *bigquery.RowIterator) ([]model.Row, error) {
	var rows []model.Row
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, model.Row(row))
	}
	return rows, nil
}

// GetMetadata implements interfaces.BigQuery. If the table does not exist, it returns nil.
func (x *Client) GetMetadata(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error) {
	md, err := x.bqClient.Dataset(dataset.String()).Table(table.String()).Metadata(ctx)
	if err != nil {
		if apierr.IsNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get table metadata", goerr.V("dataset", dataset), goerr.V("table", table))
	}

	return md, nil
}

// UpdateTable implements interfaces.BigQuery.
func (x *Client) UpdateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error {
	if _, err := x.bqClient.Dataset(dataset.String()).Table(table.String()).Update(ctx, md, eTag); err != nil {
		return goerr.Wrap(err, "failed to update table schema", goerr.V("dataset", dataset), goerr.V("table", table))
	}

	return nil
}

// CreateTable implements interfaces.BigQuery.
func (x *Client) CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error {
	if err := x.bqClient.Dataset(dataset.String()).Table(table.String()).Create(ctx, md); err != nil {
		if apierr.IsAlreadyExists(err) {
			return goerr.Wrap(types.ErrAlreadyExists, "table already exists", goerr.V("dataset", dataset), goerr.V("table", table))
		}
		return goerr.Wrap(err, "failed to create table", goerr.V("dataset", dataset), goerr.V("table", table))
	}

	return nil
}

// EnsureDataset implements interfaces.BigQuery.
func (x *Client) EnsureDataset(ctx context.Context, dataset types.BQDatasetID) error {
	ds := x.bqClient.Dataset(dataset.String())
	if _, err := ds.Metadata(ctx); err == nil {
		return nil
	} else if !apierr.IsNotFound(err) {
		return goerr.Wrap(err, "failed to get dataset metadata", goerr.V("dataset", dataset))
	}

	if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !apierr.IsAlreadyExists(err) {
		return goerr.Wrap(err, "failed to create dataset", goerr.V("dataset", dataset))
	}
	utils.CtxLogger(ctx).Info("dataset created", "dataset", dataset)

	return nil
}

// Load implements interfaces.BigQuery. Records are sent as newline delimited JSON.
func (x *Client) Load(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, schema bigquery.Schema, records []map[string]any, disposition model.WriteDisposition) (types.BQJobID, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", goerr.Wrap(err, "failed to encode record", goerr.V("record", r))
		}
	}

	source := bigquery.NewReaderSource(&buf)
	source.SourceFormat = bigquery.JSON
	source.Schema = schema

	loader := x.bqClient.Dataset(dataset.String()).Table(table.String()).LoaderFrom(source)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.TableWriteDisposition(disposition)
	if disposition == model.WriteAppend {
		loader.SchemaUpdateOptions = []string{"ALLOW_FIELD_ADDITION"}
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to start load job", goerr.V("dataset", dataset), goerr.V("table", table))
	}
	jobID := types.BQJobID(job.ID())

	status, err := job.Wait(ctx)
	if err != nil {
		return jobID, goerr.Wrap(err, "failed to wait load job", goerr.V("jobID", jobID))
	}
	if err := status.Err(); err != nil {
		return jobID, goerr.Wrap(err, "load job failed", goerr.V("jobID", jobID), goerr.V("errors", status.Errors))
	}

	return jobID, nil
}

func (x *Client) Close() error {
	if err := x.bqClient.Close(); err != nil {
		return goerr.Wrap(err, "failed to close bigquery client")
	}
	return nil
}
