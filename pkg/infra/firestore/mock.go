package firestore

import (
	"context"
	"sort"
	"sync"

	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Mock is an in-memory document store. Query supports "==" and "!=" filters only.
type Mock struct {
	Collections map[types.Collection]map[types.DocumentID]model.Document
	Closed      bool

	mutex sync.Mutex
}

var _ interfaces.Firestore = &Mock{}

func NewMock() *Mock {
	return &Mock{
		Collections: map[types.Collection]map[types.DocumentID]model.Document{},
	}
}

func (x *Mock) Get(ctx context.Context, collection types.Collection, id types.DocumentID) (model.Document, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	doc, ok := x.Collections[collection][id]
	if !ok {
		return nil, nil
	}
	return copyDoc(doc), nil
}

func (x *Mock) Set(ctx context.Context, collection types.Collection, id types.DocumentID, doc model.Document, merge bool) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	c, ok := x.Collections[collection]
	if !ok {
		c = map[types.DocumentID]model.Document{}
		x.Collections[collection] = c
	}

	if cur, ok := c[id]; ok && merge {
		for k, v := range doc {
			cur[k] = v
		}
		return nil
	}
	c[id] = copyDoc(doc)
	return nil
}

func (x *Mock) Delete(ctx context.Context, collection types.Collection, id types.DocumentID) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	delete(x.Collections[collection], id)
	return nil
}

func (x *Mock) Query(ctx context.Context, collection types.Collection, filters []model.Filter, limit int) ([]model.Document, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	ids := make([]types.DocumentID, 0, len(x.Collections[collection]))
	for id := range x.Collections[collection] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var docs []model.Document
	for _, id := range ids {
		doc := x.Collections[collection][id]
		matched, err := doc.Match(filters)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		docs = append(docs, copyDoc(doc))
		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	return docs, nil
}

func (x *Mock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Closed = true
	return nil
}

func copyDoc(doc model.Document) model.Document {
	cp := make(model.Document, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	return cp
}
