package interfaces

import (
	"context"

	"github.com/secmon-lab/gcu/pkg/domain/model"
)

type UseCase interface {
	// HandlePushMessage processes one Pub/Sub push delivery
	HandlePushMessage(ctx context.Context, body *model.PubSubBody) error
}
