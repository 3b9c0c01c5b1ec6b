package firestore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/firestore"
	"github.com/secmon-lab/gcu/pkg/utils"
)

func setupClient(t *testing.T) *firestore.Client {
	projectID := utils.LoadEnv(t, "TEST_FIRESTORE_PROJECT_ID")
	databaseID := utils.LoadEnv(t, "TEST_FIRESTORE_DATABASE_ID")

	ctx := context.Background()
	client := gt.R1(firestore.New(ctx, types.GoogleProjectID(projectID), databaseID)).NoError(t)
	t.Cleanup(func() { utils.SafeClose(client) })

	return client
}

func TestFirestoreDocument(t *testing.T) {
	client := setupClient(t)

	ctx := context.Background()
	collection := types.Collection("gcu_test")
	id := types.DocumentID(uuid.NewString())

	gt.NoError(t, client.Set(ctx, collection, id, model.Document{"color": "blue", "n": 1}, false))
	gt.NoError(t, client.Set(ctx, collection, id, model.Document{"size": "L"}, true))

	doc := gt.R1(client.Get(ctx, collection, id)).NoError(t)
	gt.M(t, doc).HasKey("color").HasKey("size")

	docs := gt.R1(client.Query(ctx, collection, []model.Filter{{Field: "size", Op: "==", Value: "L"}}, 0)).NoError(t)
	gt.True(t, len(docs) >= 1)

	gt.NoError(t, client.Delete(ctx, collection, id))
	gt.V(t, gt.R1(client.Get(ctx, collection, id)).NoError(t)).Nil()
}

func TestMock(t *testing.T) {
	ctx := context.Background()
	mock := firestore.NewMock()

	gt.NoError(t, mock.Set(ctx, "users", "u1", model.Document{"name": "alice", "role": "admin"}, false))
	gt.NoError(t, mock.Set(ctx, "users", "u2", model.Document{"name": "bob", "role": "user"}, false))
	gt.NoError(t, mock.Set(ctx, "users", "u2", model.Document{"team": "blue"}, true))

	u2 := gt.R1(mock.Get(ctx, "users", "u2")).NoError(t)
	gt.Equal(t, u2["name"], any("bob"))
	gt.Equal(t, u2["team"], any("blue"))

	docs := gt.R1(mock.Query(ctx, "users", []model.Filter{{Field: "role", Op: "==", Value: "admin"}}, 0)).NoError(t)
	gt.A(t, docs).Length(1)

	gt.V(t, gt.R1(mock.Get(ctx, "users", "missing")).NoError(t)).Nil()
}
