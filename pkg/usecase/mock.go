package usecase

import (
	"context"

	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
)

type Mock struct {
	MockHandlePushMessage func(ctx context.Context, body *model.PubSubBody) error
}

var _ interfaces.UseCase = &Mock{}

func (x *Mock) HandlePushMessage(ctx context.Context, body *model.PubSubBody) error {
	if x.MockHandlePushMessage != nil {
		return x.MockHandlePushMessage(ctx, body)
	}
	return nil
}
