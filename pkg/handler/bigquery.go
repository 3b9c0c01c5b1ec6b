package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// BigQuery runs queries, table functions and load jobs
type BigQuery struct {
	backend   interfaces.BigQuery
	projectID types.GoogleProjectID
	now       func() time.Time
}

func NewBigQuery(backend interfaces.BigQuery, projectID types.GoogleProjectID) *BigQuery {
	return &BigQuery{
		backend:   backend,
		projectID: projectID,
		now:       time.Now,
	}
}

func (x *BigQuery) ProjectID() types.GoogleProjectID { return x.projectID }

var (
	bqIdentifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	bqRegionPattern     = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// RunQuery runs a query and returns all rows with the job ID
func (x *BigQuery) RunQuery(ctx context.Context, query string, options ...model.QueryOption) (*model.QueryResult, error) {
	const op = "RunQuery"
	if strings.TrimSpace(query) == "" {
		return nil, invalidInput(types.ServiceBigQuery, op, "query is empty")
	}

	resp, err := x.backend.Query(ctx, query, model.NewQueryOptions(options...))
	if err != nil {
		return nil, opError(types.ServiceBigQuery, op, err)
	}

	utils.CtxLogger(ctx).Info("query job done", "jobID", resp.JobID, "rows", resp.Len())
	return resp, nil
}

// GetTable reads every row of the table
func (x *BigQuery) GetTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) ([]model.Row, error) {
	const op = "GetTable"
	if dataset == "" || table == "" {
		return nil, invalidInput(types.ServiceBigQuery, op, "dataset and table are required", goerr.V("dataset", dataset), goerr.V("table", table))
	}

	rows, err := x.backend.ReadTable(ctx, dataset, table)
	if err != nil {
		return nil, opError(types.ServiceBigQuery, op, err)
	}

	utils.CtxLogger(ctx).Debug("table read", "dataset", dataset, "table", table, "rows", len(rows))
	return rows, nil
}

func (x *BigQuery) TableExists(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (bool, error) {
	const op = "TableExists"
	if dataset == "" || table == "" {
		return false, invalidInput(types.ServiceBigQuery, op, "dataset and table are required", goerr.V("dataset", dataset), goerr.V("table", table))
	}

	md, err := x.backend.GetMetadata(ctx, dataset, table)
	if err != nil {
		return false, opError(types.ServiceBigQuery, op, err)
	}
	return md != nil, nil
}

// DefaultJobRegion is used by RetrieveJobDetails when region is empty
const DefaultJobRegion = "us"

// RetrieveJobDetails looks up jobs in INFORMATION_SCHEMA.JOBS_BY_PROJECT of the region. No job IDs means no rows.
func (x *BigQuery) RetrieveJobDetails(ctx context.Context, region string, jobIDs []types.BQJobID) ([]model.Row, error) {
	const op = "RetrieveJobDetails"
	if len(jobIDs) == 0 {
		return nil, nil
	}
	if region == "" {
		region = DefaultJobRegion
	}
	if !bqRegionPattern.MatchString(region) {
		return nil, invalidInput(types.ServiceBigQuery, op, "invalid region", goerr.V("region", region))
	}

	ids := make([]string, len(jobIDs))
	for i, id := range jobIDs {
		ids[i] = id.String()
	}

	query := fmt.Sprintf("SELECT creation_time, project_id, project_number, job_id, job_type, statement_type, priority, start_time, end_time, query, state "+
		"FROM `region-%s`.INFORMATION_SCHEMA.JOBS_BY_PROJECT WHERE job_id IN UNNEST(@job_ids)", region)

	resp, err := x.backend.Query(ctx, query, model.NewQueryOptions(model.WithQueryParameter("job_ids", ids)))
	if err != nil {
		return nil, opError(types.ServiceBigQuery, op, err)
	}
	return resp.Rows, nil
}

func (x *BigQuery) Close() error {
	return x.backend.Close()
}
