package usecase

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// Enqueue lists objects under a gs://bucket/prefix URL and publishes them to the topic in batches bounded by object count and total size
func (x *UseCase) Enqueue(ctx context.Context, url types.CSUrl, topic types.PubSubTopicID) (*model.EnqueueResult, error) {
	bucket, prefix, err := url.ParsePrefix()
	if err != nil {
		return nil, err
	}

	storage, err := x.agg.Storage(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := x.agg.PubSub(ctx)
	if err != nil {
		return nil, err
	}

	objects, err := storage.List(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}

	result := &model.EnqueueResult{}
	batch := &model.ObjectBatch{}
	for _, obj := range objects {
		result.Count++
		result.Size += obj.Size

		if len(batch.Objects) > 0 &&
			(batch.Size()+obj.Size > x.enqueueSizeLimit || len(batch.Objects) >= x.enqueueCountLimit) {
			if err := publishBatch(ctx, ps, topic, batch); err != nil {
				return result, err
			}
			result.Batches++
			batch = &model.ObjectBatch{}
		}
		batch.Objects = append(batch.Objects, obj)
	}

	if len(batch.Objects) > 0 {
		if err := publishBatch(ctx, ps, topic, batch); err != nil {
			return result, err
		}
		result.Batches++
	}

	utils.CtxLogger(ctx).Info("objects enqueued",
		"url", url,
		"topic", topic,
		"count", result.Count,
		"size", humanize.Bytes(uint64(result.Size)),
		"batches", result.Batches,
	)
	return result, nil
}

func publishBatch(ctx context.Context, ps *handler.PubSub, topic types.PubSubTopicID, batch *model.ObjectBatch) error {
	_, err := ps.PublishJSON(ctx, topic, batch, nil)
	return err
}
