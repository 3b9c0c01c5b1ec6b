package cs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

type Mock struct {
	MockWrite        func(ctx context.Context, obj model.CloudStorageObject, data []byte, contentType string) error
	MockRead         func(ctx context.Context, obj model.CloudStorageObject) ([]byte, error)
	MockAttrs        func(ctx context.Context, obj model.CloudStorageObject) (*model.ObjectInfo, error)
	MockCopy         func(ctx context.Context, src, dst model.CloudStorageObject) error
	MockDelete       func(ctx context.Context, obj model.CloudStorageObject) error
	MockList         func(ctx context.Context, bucket types.CSBucket, prefix string) ([]*model.ObjectInfo, error)
	MockSignedURL    func(ctx context.Context, obj model.CloudStorageObject, req *model.SignedURLRequest) (string, error)
	MockBucketExists func(ctx context.Context, bucket types.CSBucket) (bool, error)
	MockCreateBucket func(ctx context.Context, projectID types.GoogleProjectID, bucket types.CSBucket) error
}

var _ interfaces.CloudStorage = &Mock{}

func (x *Mock) Write(ctx context.Context, obj model.CloudStorageObject, data []byte, contentType string) error {
	if x.MockWrite != nil {
		return x.MockWrite(ctx, obj, data, contentType)
	}
	return nil
}

func (x *Mock) Read(ctx context.Context, obj model.CloudStorageObject) ([]byte, error) {
	if x.MockRead != nil {
		return x.MockRead(ctx, obj)
	}
	return nil, nil
}

func (x *Mock) Attrs(ctx context.Context, obj model.CloudStorageObject) (*model.ObjectInfo, error) {
	if x.MockAttrs != nil {
		return x.MockAttrs(ctx, obj)
	}
	return nil, nil
}

func (x *Mock) Copy(ctx context.Context, src, dst model.CloudStorageObject) error {
	if x.MockCopy != nil {
		return x.MockCopy(ctx, src, dst)
	}
	return nil
}

func (x *Mock) Delete(ctx context.Context, obj model.CloudStorageObject) error {
	if x.MockDelete != nil {
		return x.MockDelete(ctx, obj)
	}
	return nil
}

func (x *Mock) List(ctx context.Context, bucket types.CSBucket, prefix string) ([]*model.ObjectInfo, error) {
	if x.MockList != nil {
		return x.MockList(ctx, bucket, prefix)
	}
	return nil, nil
}

func (x *Mock) SignedURL(ctx context.Context, obj model.CloudStorageObject, req *model.SignedURLRequest) (string, error) {
	if x.MockSignedURL != nil {
		return x.MockSignedURL(ctx, obj, req)
	}
	return "", nil
}

func (x *Mock) BucketExists(ctx context.Context, bucket types.CSBucket) (bool, error) {
	if x.MockBucketExists != nil {
		return x.MockBucketExists(ctx, bucket)
	}
	return true, nil
}

func (x *Mock) CreateBucket(ctx context.Context, projectID types.GoogleProjectID, bucket types.CSBucket) error {
	if x.MockCreateBucket != nil {
		return x.MockCreateBucket(ctx, projectID, bucket)
	}
	return nil
}

func (x *Mock) Close() error { return nil }

// GeneralMock is an in-memory object store
type GeneralMock struct {
	Buckets map[types.CSBucket]map[types.CSObjectID]*MockObject
	Closed  bool

	mutex sync.Mutex
}

type MockObject struct {
	Data        []byte
	ContentType string
	Updated     time.Time
}

func NewGeneralMock() *GeneralMock {
	return &GeneralMock{
		Buckets: map[types.CSBucket]map[types.CSObjectID]*MockObject{},
	}
}

var _ interfaces.CloudStorage = &GeneralMock{}

func (x *GeneralMock) lookup(obj model.CloudStorageObject) (*MockObject, error) {
	b, ok := x.Buckets[obj.Bucket]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "bucket not found", goerr.V("bucket", obj.Bucket))
	}
	o, ok := b[obj.Name]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "object not found", goerr.V("url", obj.URL()))
	}
	return o, nil
}

func (x *GeneralMock) Write(ctx context.Context, obj model.CloudStorageObject, data []byte, contentType string) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	b, ok := x.Buckets[obj.Bucket]
	if !ok {
		return goerr.Wrap(types.ErrNotFound, "bucket not found", goerr.V("bucket", obj.Bucket))
	}
	b[obj.Name] = &MockObject{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		Updated:     time.Now(),
	}
	return nil
}

func (x *GeneralMock) Read(ctx context.Context, obj model.CloudStorageObject) ([]byte, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	o, err := x.lookup(obj)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), o.Data...), nil
}

func (x *GeneralMock) Attrs(ctx context.Context, obj model.CloudStorageObject) (*model.ObjectInfo, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	o, err := x.lookup(obj)
	if err != nil {
		return nil, err
	}
	return &model.ObjectInfo{
		CloudStorageObject: obj,
		Size:               int64(len(o.Data)),
		ContentType:        o.ContentType,
		Updated:            o.Updated,
	}, nil
}

func (x *GeneralMock) Copy(ctx context.Context, src, dst model.CloudStorageObject) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	o, err := x.lookup(src)
	if err != nil {
		return err
	}
	b, ok := x.Buckets[dst.Bucket]
	if !ok {
		return goerr.Wrap(types.ErrNotFound, "bucket not found", goerr.V("bucket", dst.Bucket))
	}
	cp := *o
	b[dst.Name] = &cp
	return nil
}

func (x *GeneralMock) Delete(ctx context.Context, obj model.CloudStorageObject) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if _, err := x.lookup(obj); err != nil {
		return err
	}
	delete(x.Buckets[obj.Bucket], obj.Name)
	return nil
}

func (x *GeneralMock) List(ctx context.Context, bucket types.CSBucket, prefix string) ([]*model.ObjectInfo, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	var objects []*model.ObjectInfo
	for name, o := range x.Buckets[bucket] {
		if !strings.HasPrefix(name.String(), prefix) {
			continue
		}
		objects = append(objects, &model.ObjectInfo{
			CloudStorageObject: model.CloudStorageObject{Bucket: bucket, Name: name},
			Size:               int64(len(o.Data)),
			ContentType:        o.ContentType,
			Updated:            o.Updated,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (x *GeneralMock) SignedURL(ctx context.Context, obj model.CloudStorageObject, req *model.SignedURLRequest) (string, error) {
	return "https://storage.googleapis.com/" + obj.Bucket.String() + "/" + obj.Name.String() + "?X-Goog-Signature=mock", nil
}

func (x *GeneralMock) BucketExists(ctx context.Context, bucket types.CSBucket) (bool, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	_, ok := x.Buckets[bucket]
	return ok, nil
}

func (x *GeneralMock) CreateBucket(ctx context.Context, projectID types.GoogleProjectID, bucket types.CSBucket) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if _, ok := x.Buckets[bucket]; ok {
		return goerr.Wrap(types.ErrAlreadyExists, "bucket already exists", goerr.V("bucket", bucket))
	}
	x.Buckets[bucket] = map[types.CSObjectID]*MockObject{}
	return nil
}

func (x *GeneralMock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Closed = true
	return nil
}
