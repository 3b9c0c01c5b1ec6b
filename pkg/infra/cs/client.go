package cs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/apierr"
	"github.com/secmon-lab/gcu/pkg/utils"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Client struct {
	client *storage.Client
}

var _ interfaces.CloudStorage = &Client{}

func New(ctx context.Context, options ...option.ClientOption) (*Client, error) {
	client, err := storage.NewClient(ctx, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &Client{
		client: client,
	}, nil
}

func (x *Client) object(obj model.CloudStorageObject) *storage.ObjectHandle {
	return x.client.Bucket(obj.Bucket.String()).Object(obj.Name.String())
}

func (x *Client) Write(ctx context.Context, obj model.CloudStorageObject, data []byte, contentType string) error {
	w := x.object(obj).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write object", goerr.V("url", obj.URL()))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close object writer", goerr.V("url", obj.URL()))
	}

	return nil
}

func (x *Client) Read(ctx context.Context, obj model.CloudStorageObject) ([]byte, error) {
	r, err := x.object(obj).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist || apierr.IsNotFound(err) {
			return nil, goerr.Wrap(types.ErrNotFound, "object not found", goerr.V("url", obj.URL()))
		}
		return nil, goerr.Wrap(err, "failed to create reader", goerr.V("url", obj.URL()))
	}
	defer utils.SafeClose(r)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object", goerr.V("url", obj.URL()))
	}
	return data, nil
}

func (x *Client) Attrs(ctx context.Context, obj model.CloudStorageObject) (*model.ObjectInfo, error) {
	attrs, err := x.object(obj).Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist || apierr.IsNotFound(err) {
			return nil, goerr.Wrap(types.ErrNotFound, "object not found", goerr.V("url", obj.URL()))
		}
		return nil, goerr.Wrap(err, "failed to get object attributes", goerr.V("url", obj.URL()))
	}

	return toObjectInfo(attrs), nil
}

func toObjectInfo(attrs *storage.ObjectAttrs) *model.ObjectInfo {
	return &model.ObjectInfo{
		CloudStorageObject: model.CloudStorageObject{
			Bucket: types.CSBucket(attrs.Bucket),
			Name:   types.CSObjectID(attrs.Name),
		},
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
	}
}

func (x *Client) Copy(ctx context.Context, src, dst model.CloudStorageObject) error {
	if _, err := x.object(dst).CopierFrom(x.object(src)).Run(ctx); err != nil {
		if err == storage.ErrObjectNotExist || apierr.IsNotFound(err) {
			return goerr.Wrap(types.ErrNotFound, "source object not found", goerr.V("src", src.URL()))
		}
		return goerr.Wrap(err, "failed to copy object", goerr.V("src", src.URL()), goerr.V("dst", dst.URL()))
	}
	return nil
}

func (x *Client) Delete(ctx context.Context, obj model.CloudStorageObject) error {
	if err := x.object(obj).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist || apierr.IsNotFound(err) {
			return goerr.Wrap(types.ErrNotFound, "object not found", goerr.V("url", obj.URL()))
		}
		return goerr.Wrap(err, "failed to delete object", goerr.V("url", obj.URL()))
	}
	return nil
}

func (x *Client) List(ctx context.Context, bucket types.CSBucket, prefix string) ([]*model.ObjectInfo, error) {
	it := x.client.Bucket(bucket.String()).Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []*model.ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects", goerr.V("bucket", bucket), goerr.V("prefix", prefix))
		}
		objects = append(objects, toObjectInfo(attrs))
	}

	return objects, nil
}

func (x *Client) SignedURL(ctx context.Context, obj model.CloudStorageObject, req *model.SignedURLRequest) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         req.Method,
		Expires:        req.Expires,
		GoogleAccessID: req.GoogleAccessID,
		PrivateKey:     req.PrivateKey,
	}

	url, err := x.client.Bucket(obj.Bucket.String()).SignedURL(obj.Name.String(), opts)
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign URL", goerr.V("url", obj.URL()))
	}
	return url, nil
}

func (x *Client) BucketExists(ctx context.Context, bucket types.CSBucket) (bool, error) {
	if _, err := x.client.Bucket(bucket.String()).Attrs(ctx); err != nil {
		if err == storage.ErrBucketNotExist || apierr.IsNotFound(err) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get bucket attributes", goerr.V("bucket", bucket))
	}
	return true, nil
}

func (x *Client) CreateBucket(ctx context.Context, projectID types.GoogleProjectID, bucket types.CSBucket) error {
	if err := x.client.Bucket(bucket.String()).Create(ctx, projectID.String(), nil); err != nil {
		if apierr.IsAlreadyExists(err) {
			return goerr.Wrap(types.ErrAlreadyExists, "bucket already exists", goerr.V("bucket", bucket))
		}
		return goerr.Wrap(err, "failed to create bucket", goerr.V("bucket", bucket), goerr.V("projectID", projectID))
	}
	return nil
}

func (x *Client) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage client")
	}
	return nil
}
