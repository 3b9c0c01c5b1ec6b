package dump_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/dump"
)

func TestClient(t *testing.T) {
	ctx := context.Background()
	client := dump.New(t.TempDir())

	bucket := types.CSBucket("my-bucket")
	obj := model.CloudStorageObject{Bucket: bucket, Name: "logs/2024/a.json"}

	t.Run("write to missing bucket fails", func(t *testing.T) {
		gt.Error(t, client.Write(ctx, obj, []byte("x"), "")).Is(types.ErrNotFound)
	})

	gt.NoError(t, client.CreateBucket(ctx, "", bucket))
	gt.Error(t, client.CreateBucket(ctx, "", bucket)).Is(types.ErrAlreadyExists)
	gt.True(t, gt.R1(client.BucketExists(ctx, bucket)).NoError(t))

	gt.NoError(t, client.Write(ctx, obj, []byte(`{"name":"Alice"}`), "application/json"))
	gt.Equal(t, gt.R1(client.Read(ctx, obj)).NoError(t), []byte(`{"name":"Alice"}`))

	moved := model.CloudStorageObject{Bucket: bucket, Name: "archive/a.json"}
	gt.NoError(t, client.Copy(ctx, obj, moved))
	gt.NoError(t, client.Delete(ctx, obj))

	_, err := client.Read(ctx, obj)
	gt.Error(t, err).Is(types.ErrNotFound)

	objects := gt.R1(client.List(ctx, bucket, "archive/")).NoError(t)
	gt.A(t, objects).Length(1).At(0, func(t testing.TB, v *model.ObjectInfo) {
		gt.Equal(t, v.Name, types.CSObjectID("archive/a.json"))
		gt.Equal(t, v.Size, 16)
	})
}

func TestPathTraversal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	client := dump.New(dir)

	gt.NoError(t, client.CreateBucket(ctx, "", "b"))
	obj := model.CloudStorageObject{Bucket: "b", Name: "../../escape.txt"}
	gt.NoError(t, client.Write(ctx, obj, []byte("x"), ""))

	objects := gt.R1(client.List(ctx, "b", "")).NoError(t)
	gt.A(t, objects).Length(1).At(0, func(t testing.TB, v *model.ObjectInfo) {
		gt.Equal(t, v.Name, types.CSObjectID("escape.txt"))
	})
}
