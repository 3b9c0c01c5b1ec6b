package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// DefaultSignedURLTTL is used when SignedURL is called with a non-positive ttl
const DefaultSignedURLTTL = time.Hour

// Storage reads and writes Cloud Storage objects
type Storage struct {
	backend   interfaces.CloudStorage
	projectID types.GoogleProjectID

	// signing key of the service account, empty for ADC
	clientEmail string
	privateKey  []byte

	now func() time.Time
}

// NewStorage creates a Storage handler. cred may be nil; then buckets are not created automatically and signed URLs are not available.
func NewStorage(backend interfaces.CloudStorage, cred *model.Credential) *Storage {
	x := &Storage{
		backend: backend,
		now:     time.Now,
	}
	if cred != nil {
		x.projectID = cred.ProjectID
		x.clientEmail = cred.ClientEmail
		x.privateKey = cred.PrivateKey
	}
	return x
}

func (x *Storage) ProjectID() types.GoogleProjectID { return x.projectID }

func objectOf(bucket types.CSBucket, name types.CSObjectID) model.CloudStorageObject {
	return model.CloudStorageObject{Bucket: bucket, Name: name}
}

func validObject(op string, bucket types.CSBucket, name types.CSObjectID) error {
	if bucket == "" || name == "" {
		return invalidInput(types.ServiceStorage, op, "bucket and object are required", goerr.V("bucket", bucket), goerr.V("object", name))
	}
	return nil
}

// Upload writes data to the object. When the handler knows its project, a missing bucket is created first.
func (x *Storage) Upload(ctx context.Context, bucket types.CSBucket, name types.CSObjectID, data []byte, contentType string) error {
	const op = "Upload"
	if err := validObject(op, bucket, name); err != nil {
		return err
	}

	if x.projectID != "" {
		if err := x.ensureBucket(ctx, bucket); err != nil {
			return opError(types.ServiceStorage, op, err)
		}
	}

	obj := objectOf(bucket, name)
	if err := x.backend.Write(ctx, obj, data, contentType); err != nil {
		return opError(types.ServiceStorage, op, err)
	}

	utils.CtxLogger(ctx).Debug("object uploaded", "url", obj.URL(), "size", humanize.Bytes(uint64(len(data))))
	return nil
}

// UploadJSON marshals v and uploads it as application/json
func (x *Storage) UploadJSON(ctx context.Context, bucket types.CSBucket, name types.CSObjectID, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return opError(types.ServiceStorage, "UploadJSON", goerr.Wrap(err, "failed to marshal object", goerr.V("bucket", bucket), goerr.V("object", name)))
	}
	return x.Upload(ctx, bucket, name, raw, "application/json")
}

// Download returns the content of the object. A missing object is an error wrapping types.ErrNotFound.
func (x *Storage) Download(ctx context.Context, bucket types.CSBucket, name types.CSObjectID) ([]byte, error) {
	const op = "Download"
	if err := validObject(op, bucket, name); err != nil {
		return nil, err
	}

	data, err := x.backend.Read(ctx, objectOf(bucket, name))
	if err != nil {
		return nil, opError(types.ServiceStorage, op, err)
	}
	return data, nil
}

// DownloadJSON downloads the object and unmarshals it into dst
func (x *Storage) DownloadJSON(ctx context.Context, bucket types.CSBucket, name types.CSObjectID, dst any) error {
	data, err := x.Download(ctx, bucket, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return opError(types.ServiceStorage, "DownloadJSON", goerr.Wrap(err, "object is not valid JSON", goerr.V("bucket", bucket), goerr.V("object", name)))
	}
	return nil
}

// Exists reports whether the object exists
func (x *Storage) Exists(ctx context.Context, bucket types.CSBucket, name types.CSObjectID) (bool, error) {
	const op = "Exists"
	if err := validObject(op, bucket, name); err != nil {
		return false, err
	}

	if _, err := x.backend.Attrs(ctx, objectOf(bucket, name)); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		return false, opError(types.ServiceStorage, op, err)
	}
	return true, nil
}

// SignedURL returns a V4 signed GET URL of the object valid for ttl. The handler must hold a service account key.
func (x *Storage) SignedURL(ctx context.Context, bucket types.CSBucket, name types.CSObjectID, ttl time.Duration) (string, error) {
	const op = "SignedURL"
	if err := validObject(op, bucket, name); err != nil {
		return "", err
	}
	if x.clientEmail == "" || len(x.privateKey) == 0 {
		return "", invalidInput(types.ServiceStorage, op, "signing requires a service account key")
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	url, err := x.backend.SignedURL(ctx, objectOf(bucket, name), &model.SignedURLRequest{
		Method:         http.MethodGet,
		Expires:        x.now().Add(ttl),
		GoogleAccessID: x.clientEmail,
		PrivateKey:     x.privateKey,
	})
	if err != nil {
		return "", opError(types.ServiceStorage, op, err)
	}
	return url, nil
}

// CreateBucket creates the bucket in the project of the handler. An existing bucket is not an error.
func (x *Storage) CreateBucket(ctx context.Context, bucket types.CSBucket) error {
	const op = "CreateBucket"
	if bucket == "" {
		return invalidInput(types.ServiceStorage, op, "bucket is required")
	}
	if x.projectID == "" {
		return invalidInput(types.ServiceStorage, op, "project ID is required to create a bucket", goerr.V("bucket", bucket))
	}

	if err := x.backend.CreateBucket(ctx, x.projectID, bucket); err != nil && !errors.Is(err, types.ErrAlreadyExists) {
		return opError(types.ServiceStorage, op, err)
	}
	return nil
}

func (x *Storage) ensureBucket(ctx context.Context, bucket types.CSBucket) error {
	ok, err := x.backend.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	utils.CtxLogger(ctx).Info("creating bucket", "bucket", bucket, "projectID", x.projectID)
	if err := x.backend.CreateBucket(ctx, x.projectID, bucket); err != nil && !errors.Is(err, types.ErrAlreadyExists) {
		return err
	}
	return nil
}

// Move copies src to dst and deletes src. It is not atomic; a failed delete leaves both objects.
func (x *Storage) Move(ctx context.Context, src, dst model.CloudStorageObject) error {
	const op = "Move"
	if err := validObject(op, src.Bucket, src.Name); err != nil {
		return err
	}
	if err := validObject(op, dst.Bucket, dst.Name); err != nil {
		return err
	}

	if err := x.backend.Copy(ctx, src, dst); err != nil {
		return opError(types.ServiceStorage, op, err)
	}
	if err := x.backend.Delete(ctx, src); err != nil {
		return opError(types.ServiceStorage, op, err)
	}
	return nil
}

// Delete removes the object
func (x *Storage) Delete(ctx context.Context, bucket types.CSBucket, name types.CSObjectID) error {
	const op = "Delete"
	if err := validObject(op, bucket, name); err != nil {
		return err
	}
	if err := x.backend.Delete(ctx, objectOf(bucket, name)); err != nil {
		return opError(types.ServiceStorage, op, err)
	}
	return nil
}

// List returns objects in the bucket whose names start with prefix
func (x *Storage) List(ctx context.Context, bucket types.CSBucket, prefix string) ([]*model.ObjectInfo, error) {
	const op = "List"
	if bucket == "" {
		return nil, invalidInput(types.ServiceStorage, op, "bucket is required")
	}

	objects, err := x.backend.List(ctx, bucket, prefix)
	if err != nil {
		return nil, opError(types.ServiceStorage, op, err)
	}
	return objects, nil
}

func (x *Storage) Close() error {
	return x.backend.Close()
}
