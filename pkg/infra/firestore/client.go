package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Client struct {
	client     *firestore.Client
	projectID  types.GoogleProjectID
	databaseID string
}

var _ interfaces.Firestore = &Client{}

// New creates a Firestore client. Empty databaseID means the default database.
func New(ctx context.Context, projectID types.GoogleProjectID, databaseID string, options ...option.ClientOption) (*Client, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID.String(), databaseID, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize firestore client", goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	return &Client{
		client:     client,
		projectID:  projectID,
		databaseID: databaseID,
	}, nil
}

// Get returns the document. If the document is not found, it returns nil.
func (x *Client) Get(ctx context.Context, collection types.Collection, id types.DocumentID) (model.Document, error) {
	doc, err := x.client.Collection(collection.String()).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("collection", collection), goerr.V("id", id))
	}

	return model.Document(doc.Data()), nil
}

// Set writes the document. If merge is true, fields not in doc are kept.
func (x *Client) Set(ctx context.Context, collection types.Collection, id types.DocumentID, doc model.Document, merge bool) error {
	ref := x.client.Collection(collection.String()).Doc(id.String())

	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}

	if _, err := ref.Set(ctx, map[string]any(doc), opts...); err != nil {
		return goerr.Wrap(err, "failed to set document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (x *Client) Delete(ctx context.Context, collection types.Collection, id types.DocumentID) error {
	if _, err := x.client.Collection(collection.String()).Doc(id.String()).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("collection", collection), goerr.V("id", id))
	}
	return nil
}

func (x *Client) Query(ctx context.Context, collection types.Collection, filters []model.Filter, limit int) ([]model.Document, error) {
	q := x.client.Collection(collection.String()).Query
	for _, f := range filters {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	snapshots, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query documents", goerr.V("collection", collection), goerr.V("filters", filters))
	}

	docs := make([]model.Document, 0, len(snapshots))
	for _, s := range snapshots {
		docs = append(docs, model.Document(s.Data()))
	}
	return docs, nil
}

func (x *Client) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}
