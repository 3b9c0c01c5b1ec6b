package handler

import (
	"context"

	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Firestore reads and writes documents of a Firestore database
type Firestore struct {
	backend   interfaces.Firestore
	projectID types.GoogleProjectID
}

func NewFirestore(backend interfaces.Firestore, projectID types.GoogleProjectID) *Firestore {
	return &Firestore{backend: backend, projectID: projectID}
}

func (x *Firestore) ProjectID() types.GoogleProjectID { return x.projectID }

// Get returns nil without error if the document does not exist
func (x *Firestore) Get(ctx context.Context, collection types.Collection, id types.DocumentID) (model.Document, error) {
	const op = "Get"
	if err := validEntity(types.ServiceFirestore, op, collection, id); err != nil {
		return nil, err
	}

	doc, err := x.backend.Get(ctx, collection, id)
	if err != nil {
		return nil, opError(types.ServiceFirestore, op, err)
	}
	return doc, nil
}

func (x *Firestore) Set(ctx context.Context, collection types.Collection, id types.DocumentID, doc model.Document, merge bool) error {
	const op = "Set"
	if err := validEntity(types.ServiceFirestore, op, collection, id); err != nil {
		return err
	}

	if err := x.backend.Set(ctx, collection, id, doc, merge); err != nil {
		return opError(types.ServiceFirestore, op, err)
	}
	return nil
}

func (x *Firestore) Delete(ctx context.Context, collection types.Collection, id types.DocumentID) error {
	const op = "Delete"
	if err := validEntity(types.ServiceFirestore, op, collection, id); err != nil {
		return err
	}

	if err := x.backend.Delete(ctx, collection, id); err != nil {
		return opError(types.ServiceFirestore, op, err)
	}
	return nil
}

// Query returns documents matching all filters. limit <= 0 means no limit.
func (x *Firestore) Query(ctx context.Context, collection types.Collection, filters []model.Filter, limit int) ([]model.Document, error) {
	const op = "Query"
	if collection == "" {
		return nil, invalidInput(types.ServiceFirestore, op, "collection is required")
	}

	docs, err := x.backend.Query(ctx, collection, filters, limit)
	if err != nil {
		return nil, opError(types.ServiceFirestore, op, err)
	}
	return docs, nil
}

func (x *Firestore) Close() error {
	return x.backend.Close()
}
