package datastore

import (
	"context"
	"errors"

	"cloud.google.com/go/datastore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"google.golang.org/api/option"
)

// MaxIndexedStringSize is the largest string value in bytes that Datastore accepts in an index
const MaxIndexedStringSize = 1500

type Client struct {
	client    *datastore.Client
	projectID types.GoogleProjectID
	namespace string
}

var _ interfaces.Datastore = &Client{}

type Option func(*Client)

func WithNamespace(ns string) Option {
	return func(c *Client) {
		c.namespace = ns
	}
}

// New creates a Datastore client. Empty databaseID means the default database.
func New(ctx context.Context, projectID types.GoogleProjectID, databaseID string, clientOptions []option.ClientOption, options ...Option) (*Client, error) {
	client, err := datastore.NewClientWithDatabase(ctx, projectID.String(), databaseID, clientOptions...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create datastore client", goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	c := &Client{
		client:    client,
		projectID: projectID,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (x *Client) key(kind types.Collection, id types.DocumentID) *datastore.Key {
	k := datastore.NameKey(kind.String(), id.String(), nil)
	k.Namespace = x.namespace
	return k
}

// Get returns the entity as a document. If the entity does not exist, it returns nil.
func (x *Client) Get(ctx context.Context, kind types.Collection, id types.DocumentID) (model.Document, error) {
	var props datastore.PropertyList
	if err := x.client.Get(ctx, x.key(kind, id), &props); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get entity", goerr.V("kind", kind), goerr.V("id", id))
	}
	return FromProperties(props), nil
}

func (x *Client) Put(ctx context.Context, kind types.Collection, id types.DocumentID, doc model.Document) error {
	props := ToProperties(doc)
	if _, err := x.client.Put(ctx, x.key(kind, id), &props); err != nil {
		return goerr.Wrap(err, "failed to put entity", goerr.V("kind", kind), goerr.V("id", id))
	}
	return nil
}

func (x *Client) Delete(ctx context.Context, kind types.Collection, id types.DocumentID) error {
	if err := x.client.Delete(ctx, x.key(kind, id)); err != nil {
		return goerr.Wrap(err, "failed to delete entity", goerr.V("kind", kind), goerr.V("id", id))
	}
	return nil
}

func (x *Client) Query(ctx context.Context, kind types.Collection, filters []model.Filter, limit int) ([]model.Document, error) {
	q := datastore.NewQuery(kind.String()).Namespace(x.namespace)
	for _, f := range filters {
		q = q.FilterField(f.Field, DatastoreOperator(f.Op), f.Value)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entities []datastore.PropertyList
	if _, err := x.client.GetAll(ctx, q, &entities); err != nil {
		return nil, goerr.Wrap(err, "failed to query entities", goerr.V("kind", kind), goerr.V("filters", filters))
	}

	docs := make([]model.Document, 0, len(entities))
	for _, e := range entities {
		docs = append(docs, FromProperties(e))
	}
	return docs, nil
}

func (x *Client) Keys(ctx context.Context, kind types.Collection) ([]*datastore.Key, error) {
	q := datastore.NewQuery(kind.String()).Namespace(x.namespace).KeysOnly()
	keys, err := x.client.GetAll(ctx, q, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list keys", goerr.V("kind", kind))
	}
	return keys, nil
}

func (x *Client) DeleteMulti(ctx context.Context, keys []*datastore.Key) error {
	if err := x.client.DeleteMulti(ctx, keys); err != nil {
		return goerr.Wrap(err, "failed to delete entities", goerr.V("count", len(keys)))
	}
	return nil
}

func (x *Client) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close datastore client")
	}
	return nil
}

// DatastoreOperator converts a Firestore style operator into the Datastore one
func DatastoreOperator(op string) string {
	if op == "==" {
		return "="
	}
	return op
}

// ToProperties converts a document into entity properties. Strings longer than MaxIndexedStringSize, nested maps and slices are excluded from indexes.
func ToProperties(doc model.Document) datastore.PropertyList {
	props := make(datastore.PropertyList, 0, len(doc))
	for name, v := range doc {
		value, noIndex := toValue(v)
		props = append(props, datastore.Property{
			Name:    name,
			Value:   value,
			NoIndex: noIndex,
		})
	}
	return props
}

func toValue(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, len(t) > MaxIndexedStringSize
	case map[string]any:
		return &datastore.Entity{Properties: ToProperties(model.Document(t))}, true
	case model.Document:
		return &datastore.Entity{Properties: ToProperties(t)}, true
	case []any:
		values := make([]any, len(t))
		for i, e := range t {
			values[i], _ = toValue(e)
		}
		return values, true
	case []string:
		values := make([]any, len(t))
		for i, e := range t {
			values[i] = e
		}
		return values, true
	case int:
		return int64(t), false
	case int32:
		return int64(t), false
	case float32:
		return float64(t), false
	default:
		return v, false
	}
}

// FromProperties converts entity properties into a document
func FromProperties(props datastore.PropertyList) model.Document {
	doc := make(model.Document, len(props))
	for _, p := range props {
		doc[p.Name] = fromValue(p.Value)
	}
	return doc
}

func fromValue(v any) any {
	switch t := v.(type) {
	case *datastore.Entity:
		if t == nil {
			return nil
		}
		return map[string]any(FromProperties(t.Properties))
	case []any:
		values := make([]any, len(t))
		for i, e := range t {
			values[i] = fromValue(e)
		}
		return values
	default:
		return v
	}
}
