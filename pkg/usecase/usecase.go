package usecase

import (
	"time"

	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
)

// UseCase combines service handlers of one aggregator into the operations of the gcu command
type UseCase struct {
	agg *handler.Aggregator

	archiveBucket   types.CSBucket
	archivePrefix   string
	stateCollection types.Collection

	enqueueCountLimit int
	enqueueSizeLimit  int64

	now func() time.Time
}

var _ interfaces.UseCase = &UseCase{}

const (
	defaultEnqueueCountLimit = 128
	defaultEnqueueSizeLimit  = 4 * 1024 * 1024
)

func New(agg *handler.Aggregator, options ...Option) *UseCase {
	uc := &UseCase{
		agg:               agg,
		enqueueCountLimit: defaultEnqueueCountLimit,
		enqueueSizeLimit:  defaultEnqueueSizeLimit,
		now:               time.Now,
	}

	for _, option := range options {
		option(uc)
	}

	return uc
}

type Option func(*UseCase)

// WithArchive stores decoded push messages under gs://bucket/prefix
func WithArchive(bucket types.CSBucket, prefix string) Option {
	return func(uc *UseCase) {
		uc.archiveBucket = bucket
		uc.archivePrefix = prefix
	}
}

// WithStateCollection records handled push messages in the Firestore collection and skips redeliveries
func WithStateCollection(collection types.Collection) Option {
	return func(uc *UseCase) {
		uc.stateCollection = collection
	}
}

func WithEnqueueCountLimit(n int) Option {
	if n < 1 {
		n = 1
	}
	return func(uc *UseCase) {
		uc.enqueueCountLimit = n
	}
}

// WithEnqueueSizeLimit sets the total object size in bytes of one published batch
func WithEnqueueSizeLimit(n int64) Option {
	if n < 1 {
		n = 1
	}
	return func(uc *UseCase) {
		uc.enqueueSizeLimit = n
	}
}

func WithNow(f func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = f
	}
}
