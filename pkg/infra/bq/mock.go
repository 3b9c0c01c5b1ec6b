package bq

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/bigquery"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

type Mock struct {
	MockQuery         func(ctx context.Context, query string, opts *model.QueryOptions) (*model.QueryResult, error)
	MockReadTable     func(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) ([]model.Row, error)
	MockGetMetadata   func(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error)
	MockUpdateTable   func(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error
	MockCreateTable   func(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error
	MockEnsureDataset func(ctx context.Context, dataset types.BQDatasetID) error
	MockLoad          func(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, schema bigquery.Schema, records []map[string]any, disposition model.WriteDisposition) (types.BQJobID, error)
}

func NewMock() *Mock {
	return &Mock{}
}

var _ interfaces.BigQuery = &Mock{}

func (x *Mock) Query(ctx context.Context, query string, opts *model.QueryOptions) (*model.QueryResult, error) {
	if x.MockQuery != nil {
		return x.MockQuery(ctx, query, opts)
	}
	return &model.QueryResult{}, nil
}

func (x *Mock) ReadTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) ([]model.Row, error) {
	if x.MockReadTable != nil {
		return x.MockReadTable(ctx, dataset, table)
	}
	return nil, nil
}

func (x *Mock) GetMetadata(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error) {
	if x.MockGetMetadata != nil {
		return x.MockGetMetadata(ctx, dataset, table)
	}
	return nil, nil
}

func (x *Mock) UpdateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error {
	if x.MockUpdateTable != nil {
		return x.MockUpdateTable(ctx, dataset, table, md, eTag)
	}
	return nil
}

func (x *Mock) CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error {
	if x.MockCreateTable != nil {
		return x.MockCreateTable(ctx, dataset, table, md)
	}
	return nil
}

func (x *Mock) EnsureDataset(ctx context.Context, dataset types.BQDatasetID) error {
	if x.MockEnsureDataset != nil {
		return x.MockEnsureDataset(ctx, dataset)
	}
	return nil
}

func (x *Mock) Load(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, schema bigquery.Schema, records []map[string]any, disposition model.WriteDisposition) (types.BQJobID, error) {
	if x.MockLoad != nil {
		return x.MockLoad(ctx, dataset, table, schema, records, disposition)
	}
	return "", nil
}

func (x *Mock) Close() error { return nil }

// GeneralMock records calls and keeps table metadata in memory
type GeneralMock struct {
	// Results are returned by Query in order. Query returns an empty result when exhausted.
	Results []*model.QueryResult
	Queries []struct {
		Query   string
		Options *model.QueryOptions
	}

	Tables   map[string]*bigquery.TableMetadata
	Datasets map[types.BQDatasetID]bool

	CreatedTable []struct {
		Dataset types.BQDatasetID
		Table   types.BQTableID
		MD      *bigquery.TableMetadata
	}
	UpdatedTable []struct {
		Dataset types.BQDatasetID
		Table   types.BQTableID
		MD      bigquery.TableMetadataToUpdate
		ETag    string
	}
	Loaded []*MockLoadedData

	Closed bool

	jobSeq int
	mutex  sync.Mutex
}

type MockLoadedData struct {
	Dataset     types.BQDatasetID
	Table       types.BQTableID
	Schema      bigquery.Schema
	Records     []map[string]any
	Disposition model.WriteDisposition
}

func NewGeneralMock() *GeneralMock {
	return &GeneralMock{
		Tables:   map[string]*bigquery.TableMetadata{},
		Datasets: map[types.BQDatasetID]bool{},
	}
}

var _ interfaces.BigQuery = &GeneralMock{}

func tableKey(dataset types.BQDatasetID, table types.BQTableID) string {
	return dataset.String() + "." + table.String()
}

func (x *GeneralMock) nextJobID() types.BQJobID {
	x.jobSeq++
	return types.BQJobID(fmt.Sprintf("mock-job-%d", x.jobSeq))
}

func (x *GeneralMock) Query(ctx context.Context, query string, opts *model.QueryOptions) (*model.QueryResult, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Queries = append(x.Queries, struct {
		Query   string
		Options *model.QueryOptions
	}{Query: query, Options: opts})

	if len(x.Results) == 0 {
		return &model.QueryResult{JobID: x.nextJobID()}, nil
	}
	resp := x.Results[0]
	x.Results = x.Results[1:]
	if resp.JobID == "" {
		resp.JobID = x.nextJobID()
	}
	return resp, nil
}

func (x *GeneralMock) ReadTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) ([]model.Row, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	var rows []model.Row
	for _, l := range x.Loaded {
		if l.Dataset != dataset || l.Table != table {
			continue
		}
		if l.Disposition == model.WriteTruncate {
			rows = nil
		}
		for _, r := range l.Records {
			row := model.Row{}
			for k, v := range r {
				row[k] = v
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (x *GeneralMock) GetMetadata(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	return x.Tables[tableKey(dataset, table)], nil
}

func (x *GeneralMock) UpdateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.UpdatedTable = append(x.UpdatedTable, struct {
		Dataset types.BQDatasetID
		Table   types.BQTableID
		MD      bigquery.TableMetadataToUpdate
		ETag    string
	}{Dataset: dataset, Table: table, MD: md, ETag: eTag})

	if cur, ok := x.Tables[tableKey(dataset, table)]; ok && md.Schema != nil {
		cur.Schema = md.Schema
	}
	return nil
}

func (x *GeneralMock) CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.CreatedTable = append(x.CreatedTable, struct {
		Dataset types.BQDatasetID
		Table   types.BQTableID
		MD      *bigquery.TableMetadata
	}{Dataset: dataset, Table: table, MD: md})

	x.Tables[tableKey(dataset, table)] = md
	return nil
}

func (x *GeneralMock) EnsureDataset(ctx context.Context, dataset types.BQDatasetID) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Datasets[dataset] = true
	return nil
}

func (x *GeneralMock) Load(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, schema bigquery.Schema, records []map[string]any, disposition model.WriteDisposition) (types.BQJobID, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Loaded = append(x.Loaded, &MockLoadedData{
		Dataset:     dataset,
		Table:       table,
		Schema:      schema,
		Records:     records,
		Disposition: disposition,
	})

	key := tableKey(dataset, table)
	if md, ok := x.Tables[key]; ok {
		md.Schema = schema
	} else {
		x.Tables[key] = &bigquery.TableMetadata{Schema: schema}
	}

	return x.nextJobID(), nil
}

func (x *GeneralMock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Closed = true
	return nil
}
