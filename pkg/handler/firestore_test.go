package handler_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/infra/firestore"
)

func TestFirestore(t *testing.T) {
	ctx := context.Background()
	h := handler.NewFirestore(firestore.NewMock(), "test-project")

	missing := gt.R1(h.Get(ctx, "configs", "main")).NoError(t)
	gt.True(t, missing == nil)

	gt.NoError(t, h.Set(ctx, "configs", "main", model.Document{"color": "blue"}, false))
	gt.NoError(t, h.Set(ctx, "configs", "main", model.Document{"size": "L"}, true))

	doc := gt.R1(h.Get(ctx, "configs", "main")).NoError(t)
	gt.Equal(t, doc, model.Document{"color": "blue", "size": "L"})

	docs := gt.R1(h.Query(ctx, "configs", []model.Filter{{Field: "size", Op: "==", Value: "L"}}, 1)).NoError(t)
	gt.A(t, docs).Length(1)

	gt.NoError(t, h.Delete(ctx, "configs", "main"))
	missing = gt.R1(h.Get(ctx, "configs", "main")).NoError(t)
	gt.True(t, missing == nil)

	_, err := h.Get(ctx, "", "main")
	gt.Error(t, err).Is(types.ErrInvalidOption)
}
