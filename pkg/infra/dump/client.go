package dump

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Client is a Cloud Storage backend on the local filesystem. An object is stored as "{outDir}/{bucket}/{name}" and a bucket is a directory.
type Client struct {
	outDir string
}

var _ interfaces.CloudStorage = &Client{}

// New returns a new instance of dumper Client.
func New(outDir string) *Client {
	return &Client{
		outDir: filepath.Clean(outDir),
	}
}

func (x *Client) bucketPath(bucket types.CSBucket) string {
	return filepath.Join(x.outDir, filepath.Clean("/"+bucket.String()))
}

func (x *Client) objectPath(obj model.CloudStorageObject) string {
	return filepath.Join(x.bucketPath(obj.Bucket), filepath.Clean("/"+obj.Name.String()))
}

func notFound(err error, obj model.CloudStorageObject) error {
	if errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(types.ErrNotFound, "object not found", goerr.V("url", obj.URL()))
	}
	return nil
}

// Write implements interfaces.CloudStorage. The bucket directory must exist. contentType is not kept.
func (x *Client) Write(ctx context.Context, obj model.CloudStorageObject, data []byte, contentType string) error {
	if _, err := os.Stat(x.bucketPath(obj.Bucket)); err != nil {
		return goerr.Wrap(types.ErrNotFound, "bucket not found", goerr.V("bucket", obj.Bucket))
	}

	fpath := x.objectPath(obj)
	if err := os.MkdirAll(filepath.Dir(fpath), 0750); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("file", fpath))
	}
	if err := os.WriteFile(fpath, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write file", goerr.V("file", fpath))
	}
	return nil
}

func (x *Client) Read(ctx context.Context, obj model.CloudStorageObject) ([]byte, error) {
	fpath := x.objectPath(obj)
	data, err := os.ReadFile(filepath.Clean(fpath))
	if err != nil {
		if nf := notFound(err, obj); nf != nil {
			return nil, nf
		}
		return nil, goerr.Wrap(err, "failed to read file", goerr.V("file", fpath))
	}
	return data, nil
}

func (x *Client) Attrs(ctx context.Context, obj model.CloudStorageObject) (*model.ObjectInfo, error) {
	fpath := x.objectPath(obj)
	st, err := os.Stat(fpath)
	if err != nil {
		if nf := notFound(err, obj); nf != nil {
			return nil, nf
		}
		return nil, goerr.Wrap(err, "failed to stat file", goerr.V("file", fpath))
	}
	return &model.ObjectInfo{
		CloudStorageObject: obj,
		Size:               st.Size(),
		Updated:            st.ModTime(),
	}, nil
}

func (x *Client) Copy(ctx context.Context, src, dst model.CloudStorageObject) error {
	data, err := x.Read(ctx, src)
	if err != nil {
		return err
	}
	return x.Write(ctx, dst, data, "")
}

func (x *Client) Delete(ctx context.Context, obj model.CloudStorageObject) error {
	fpath := x.objectPath(obj)
	if err := os.Remove(fpath); err != nil {
		if nf := notFound(err, obj); nf != nil {
			return nf
		}
		return goerr.Wrap(err, "failed to remove file", goerr.V("file", fpath))
	}
	return nil
}

func (x *Client) List(ctx context.Context, bucket types.CSBucket, prefix string) ([]*model.ObjectInfo, error) {
	root := x.bucketPath(bucket)

	var objects []*model.ObjectInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, &model.ObjectInfo{
			CloudStorageObject: model.CloudStorageObject{Bucket: bucket, Name: types.CSObjectID(name)},
			Size:               info.Size(),
			Updated:            info.ModTime(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(types.ErrNotFound, "bucket not found", goerr.V("bucket", bucket))
		}
		return nil, goerr.Wrap(err, "failed to walk bucket directory", goerr.V("dir", root))
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// SignedURL implements interfaces.CloudStorage. It returns a file URL since a local file cannot be signed.
func (x *Client) SignedURL(ctx context.Context, obj model.CloudStorageObject, req *model.SignedURLRequest) (string, error) {
	abs, err := filepath.Abs(x.objectPath(obj))
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve path", goerr.V("url", obj.URL()))
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (x *Client) BucketExists(ctx context.Context, bucket types.CSBucket) (bool, error) {
	st, err := os.Stat(x.bucketPath(bucket))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to stat bucket directory", goerr.V("bucket", bucket))
	}
	return st.IsDir(), nil
}

func (x *Client) CreateBucket(ctx context.Context, projectID types.GoogleProjectID, bucket types.CSBucket) error {
	dir := x.bucketPath(bucket)
	if _, err := os.Stat(dir); err == nil {
		return goerr.Wrap(types.ErrAlreadyExists, "bucket already exists", goerr.V("bucket", bucket))
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create bucket directory", goerr.V("dir", dir))
	}
	return nil
}

func (x *Client) Close() error { return nil }
