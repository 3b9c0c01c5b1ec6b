package model

import (
	"time"

	"github.com/secmon-lab/gcu/pkg/domain/types"
)

type CloudStorageObject struct {
	Bucket types.CSBucket   `json:"bucket"`
	Name   types.CSObjectID `json:"name"`
}

func (x CloudStorageObject) URL() types.CSUrl {
	return types.CSUrl("gs://" + x.Bucket.String() + "/" + x.Name.String())
}

type ObjectInfo struct {
	CloudStorageObject
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Updated     time.Time `json:"updated"`
}

// ObjectBatch is the Pub/Sub message published by the enqueue command
type ObjectBatch struct {
	Objects []*ObjectInfo `json:"objects"`
}

func (x *ObjectBatch) Size() int64 {
	var sum int64
	for _, obj := range x.Objects {
		sum += obj.Size
	}
	return sum
}

type SignedURLRequest struct {
	Method         string
	Expires        time.Time
	GoogleAccessID string
	PrivateKey     []byte
}
