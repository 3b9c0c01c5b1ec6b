package datastore_test

import (
	"context"
	"strings"
	"testing"

	ds "cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/datastore"
	"github.com/secmon-lab/gcu/pkg/utils"
)

func TestToProperties(t *testing.T) {
	doc := model.Document{
		"short":  "abc",
		"long":   strings.Repeat("x", datastore.MaxIndexedStringSize+1),
		"exact":  strings.Repeat("y", datastore.MaxIndexedStringSize),
		"nested": map[string]any{"a": 1},
		"list":   []any{"a", "b"},
		"count":  3,
	}

	noIndex := map[string]bool{}
	for _, p := range datastore.ToProperties(doc) {
		noIndex[p.Name] = p.NoIndex
	}

	gt.False(t, noIndex["short"])
	gt.True(t, noIndex["long"])
	gt.False(t, noIndex["exact"])
	gt.True(t, noIndex["nested"])
	gt.True(t, noIndex["list"])
	gt.False(t, noIndex["count"])
}

func TestPropertiesRoundTrip(t *testing.T) {
	doc := model.Document{
		"name":   "blue",
		"nested": map[string]any{"size": "L"},
	}

	restored := datastore.FromProperties(datastore.ToProperties(doc))
	gt.Equal(t, restored["name"], any("blue"))
	nested, ok := restored["nested"].(map[string]any)
	gt.True(t, ok)
	gt.Equal(t, nested["size"], any("L"))
}

func TestDatastoreOperator(t *testing.T) {
	gt.Equal(t, datastore.DatastoreOperator("=="), "=")
	gt.Equal(t, datastore.DatastoreOperator(">="), ">=")
}

func TestMockDeleteMulti(t *testing.T) {
	ctx := context.Background()
	mock := datastore.NewMock()

	gt.NoError(t, mock.Put(ctx, "items", "a", model.Document{"v": "1"}))
	gt.NoError(t, mock.Put(ctx, "items", "b", model.Document{"v": "2"}))

	keys := gt.R1(mock.Keys(ctx, "items")).NoError(t)
	gt.A(t, keys).Length(2).At(0, func(t testing.TB, v *ds.Key) {
		gt.Equal(t, v.Name, "a")
	})

	gt.NoError(t, mock.DeleteMulti(ctx, keys))
	gt.A(t, gt.R1(mock.Keys(ctx, "items")).NoError(t)).Length(0)
}

func TestClient(t *testing.T) {
	projectID := types.GoogleProjectID(utils.LoadEnv(t, "TEST_DATASTORE_PROJECT_ID"))

	ctx := context.Background()
	client := gt.R1(datastore.New(ctx, projectID, "", nil)).NoError(t)
	defer utils.SafeClose(client)

	kind := types.Collection("gcu_test")
	id := types.DocumentID(uuid.NewString())

	gt.NoError(t, client.Put(ctx, kind, id, model.Document{"color": "blue"}))
	doc := gt.R1(client.Get(ctx, kind, id)).NoError(t)
	gt.Equal(t, doc["color"], any("blue"))

	gt.NoError(t, client.Delete(ctx, kind, id))
	gt.V(t, gt.R1(client.Get(ctx, kind, id)).NoError(t)).Nil()
}
