package handler

import (
	"context"
	"maps"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// datastoreDeleteBatchSize is the largest number of keys accepted by one DeleteMulti
const datastoreDeleteBatchSize = 500

// Datastore stores schemaless entities keyed by kind and name
type Datastore struct {
	backend   interfaces.Datastore
	projectID types.GoogleProjectID
}

func NewDatastore(backend interfaces.Datastore, projectID types.GoogleProjectID) *Datastore {
	return &Datastore{backend: backend, projectID: projectID}
}

func (x *Datastore) ProjectID() types.GoogleProjectID { return x.projectID }

func validEntity(svc types.Service, op string, kind types.Collection, id types.DocumentID) error {
	if kind == "" || id == "" {
		return invalidInput(svc, op, "collection and ID are required", goerr.V("collection", kind), goerr.V("id", id))
	}
	return nil
}

// Get returns nil without error if the entity does not exist
func (x *Datastore) Get(ctx context.Context, kind types.Collection, id types.DocumentID) (model.Document, error) {
	const op = "Get"
	if err := validEntity(types.ServiceDatastore, op, kind, id); err != nil {
		return nil, err
	}

	doc, err := x.backend.Get(ctx, kind, id)
	if err != nil {
		return nil, opError(types.ServiceDatastore, op, err)
	}
	return doc, nil
}

// Set writes the entity. With merge, fields of the existing entity that doc does not have are kept.
func (x *Datastore) Set(ctx context.Context, kind types.Collection, id types.DocumentID, doc model.Document, merge bool) error {
	const op = "Set"
	if err := validEntity(types.ServiceDatastore, op, kind, id); err != nil {
		return err
	}

	if merge {
		current, err := x.backend.Get(ctx, kind, id)
		if err != nil {
			return opError(types.ServiceDatastore, op, err)
		}
		if current != nil {
			merged := model.Document{}
			maps.Copy(merged, current)
			maps.Copy(merged, doc)
			doc = merged
		}
	}

	if err := x.backend.Put(ctx, kind, id, doc); err != nil {
		return opError(types.ServiceDatastore, op, err)
	}
	return nil
}

func (x *Datastore) Delete(ctx context.Context, kind types.Collection, id types.DocumentID) error {
	const op = "Delete"
	if err := validEntity(types.ServiceDatastore, op, kind, id); err != nil {
		return err
	}

	if err := x.backend.Delete(ctx, kind, id); err != nil {
		return opError(types.ServiceDatastore, op, err)
	}
	return nil
}

// Query returns entities matching all filters. limit <= 0 means no limit.
func (x *Datastore) Query(ctx context.Context, kind types.Collection, filters []model.Filter, limit int) ([]model.Document, error) {
	const op = "Query"
	if kind == "" {
		return nil, invalidInput(types.ServiceDatastore, op, "collection is required")
	}

	docs, err := x.backend.Query(ctx, kind, filters, limit)
	if err != nil {
		return nil, opError(types.ServiceDatastore, op, err)
	}
	return docs, nil
}

// Clear deletes every entity of the kind and returns the number of deleted entities
func (x *Datastore) Clear(ctx context.Context, kind types.Collection) (int, error) {
	const op = "Clear"
	if kind == "" {
		return 0, invalidInput(types.ServiceDatastore, op, "collection is required")
	}

	keys, err := x.backend.Keys(ctx, kind)
	if err != nil {
		return 0, opError(types.ServiceDatastore, op, err)
	}

	deleted := 0
	for start := 0; start < len(keys); start += datastoreDeleteBatchSize {
		end := min(start+datastoreDeleteBatchSize, len(keys))
		if err := x.backend.DeleteMulti(ctx, keys[start:end]); err != nil {
			return deleted, opError(types.ServiceDatastore, op, goerr.Wrap(err, "failed to delete batch", goerr.V("deleted", deleted)))
		}
		deleted += end - start
	}

	utils.CtxLogger(ctx).Info("kind cleared", "kind", kind, "deleted", deleted)
	return deleted, nil
}

func (x *Datastore) Close() error {
	return x.backend.Close()
}
