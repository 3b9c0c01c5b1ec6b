package usecase

import (
	"context"
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// HandlePushMessage decodes a Pub/Sub push delivery and archives it to Cloud Storage when an archive bucket is configured. Otherwise the message is only logged.
func (x *UseCase) HandlePushMessage(ctx context.Context, body *model.PubSubBody) error {
	if body == nil || body.Message.MessageID == "" {
		return goerr.Wrap(types.ErrInvalidOption, "push message has no message ID")
	}

	data, err := body.Message.Decode()
	if err != nil {
		return err
	}

	logger := utils.CtxLogger(ctx).With("messageID", body.Message.MessageID, "subscription", body.Subscription)

	if x.stateCollection != "" {
		handled, err := x.isHandled(ctx, body.Message.MessageID)
		if err != nil {
			return err
		}
		if handled {
			logger.Info("push message already handled")
			return nil
		}
	}

	msg := &model.ArchivedMessage{
		Subscription: body.Subscription,
		MessageID:    body.Message.MessageID,
		PublishTime:  body.Message.PublishTime,
		Attributes:   body.Message.Attributes,
		Data:         data,
		ReceivedAt:   x.now().UTC(),
	}

	var archivedTo types.CSUrl
	if x.archiveBucket != "" {
		storage, err := x.agg.Storage(ctx)
		if err != nil {
			return err
		}

		name := archiveObjectName(x.archivePrefix, body.Subscription, body.Message.MessageID)
		if err := storage.UploadJSON(ctx, x.archiveBucket, name, msg); err != nil {
			return err
		}
		archivedTo = model.CloudStorageObject{Bucket: x.archiveBucket, Name: name}.URL()
		logger.Info("push message archived", "url", archivedTo)
	} else {
		logger.Info("push message received", "message", msg)
	}

	if x.stateCollection != "" {
		state := &model.PushState{
			Subscription: body.Subscription,
			ArchivedTo:   archivedTo.String(),
			HandledAt:    msg.ReceivedAt,
		}
		if err := x.markHandled(ctx, body.Message.MessageID, state); err != nil {
			return err
		}
	}

	return nil
}

// archiveObjectName returns prefix/subscription/message_id.json. The subscription is the short name of projects/{p}/subscriptions/{name}.
func archiveObjectName(prefix, subscription, messageID string) types.CSObjectID {
	sub := subscription
	if i := strings.LastIndex(sub, "/"); i >= 0 {
		sub = sub[i+1:]
	}
	if sub == "" {
		sub = "unknown"
	}
	return types.CSObjectID(path.Join(prefix, sub, messageID+".json"))
}

func (x *UseCase) isHandled(ctx context.Context, messageID string) (bool, error) {
	fs, err := x.agg.Firestore(ctx)
	if err != nil {
		return false, err
	}

	doc, err := fs.Get(ctx, x.stateCollection, types.DocumentID(messageID))
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

func (x *UseCase) markHandled(ctx context.Context, messageID string, state *model.PushState) error {
	fs, err := x.agg.Firestore(ctx)
	if err != nil {
		return err
	}
	return fs.Set(ctx, x.stateCollection, types.DocumentID(messageID), state.Document(), false)
}
