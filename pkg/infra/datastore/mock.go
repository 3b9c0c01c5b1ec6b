package datastore

import (
	"context"
	"sort"
	"sync"

	"cloud.google.com/go/datastore"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Mock is an in-memory entity store. Entities are stored as converted properties so that index exclusion can be inspected.
type Mock struct {
	Kinds map[types.Collection]map[types.DocumentID]datastore.PropertyList

	DeleteMultiCalls [][]*datastore.Key
	Closed           bool

	mutex sync.Mutex
}

var _ interfaces.Datastore = &Mock{}

func NewMock() *Mock {
	return &Mock{
		Kinds: map[types.Collection]map[types.DocumentID]datastore.PropertyList{},
	}
}

func (x *Mock) Get(ctx context.Context, kind types.Collection, id types.DocumentID) (model.Document, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	props, ok := x.Kinds[kind][id]
	if !ok {
		return nil, nil
	}
	return FromProperties(props), nil
}

func (x *Mock) Put(ctx context.Context, kind types.Collection, id types.DocumentID, doc model.Document) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	k, ok := x.Kinds[kind]
	if !ok {
		k = map[types.DocumentID]datastore.PropertyList{}
		x.Kinds[kind] = k
	}
	k[id] = ToProperties(doc)
	return nil
}

func (x *Mock) Delete(ctx context.Context, kind types.Collection, id types.DocumentID) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	delete(x.Kinds[kind], id)
	return nil
}

func (x *Mock) Query(ctx context.Context, kind types.Collection, filters []model.Filter, limit int) ([]model.Document, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	var docs []model.Document
	for _, id := range x.sortedIDs(kind) {
		doc := FromProperties(x.Kinds[kind][id])
		matched, err := doc.Match(filters)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		docs = append(docs, doc)
		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	return docs, nil
}

func (x *Mock) Keys(ctx context.Context, kind types.Collection) ([]*datastore.Key, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	var keys []*datastore.Key
	for _, id := range x.sortedIDs(kind) {
		keys = append(keys, datastore.NameKey(kind.String(), id.String(), nil))
	}
	return keys, nil
}

func (x *Mock) DeleteMulti(ctx context.Context, keys []*datastore.Key) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.DeleteMultiCalls = append(x.DeleteMultiCalls, keys)
	for _, k := range keys {
		delete(x.Kinds[types.Collection(k.Kind)], types.DocumentID(k.Name))
	}
	return nil
}

func (x *Mock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Closed = true
	return nil
}

func (x *Mock) sortedIDs(kind types.Collection) []types.DocumentID {
	ids := make([]types.DocumentID, 0, len(x.Kinds[kind]))
	for id := range x.Kinds[kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
