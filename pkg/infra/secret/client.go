package secret

import (
	"context"
	"hash/crc32"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/apierr"
	"google.golang.org/api/option"
)

type Client struct {
	client *secretmanager.Client
}

var _ interfaces.SecretManager = &Client{}

func New(ctx context.Context, options ...option.ClientOption) (*Client, error) {
	client, err := secretmanager.NewClient(ctx, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create secret manager client")
	}
	return &Client{client: client}, nil
}

// AccessSecretVersion returns the payload of the version. The payload checksum is verified when the API returns one.
func (x *Client) AccessSecretVersion(ctx context.Context, name string) ([]byte, error) {
	resp, err := x.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		if apierr.IsNotFound(err) {
			return nil, goerr.Wrap(types.ErrNotFound, "secret version not found", goerr.V("name", name))
		}
		return nil, goerr.Wrap(err, "failed to access secret version", goerr.V("name", name))
	}

	payload := resp.GetPayload()
	if payload == nil {
		return nil, goerr.Wrap(types.ErrAssertion, "secret version has no payload", goerr.V("name", name))
	}

	if payload.DataCrc32C != nil {
		table := crc32.MakeTable(crc32.Castagnoli)
		if sum := int64(crc32.Checksum(payload.Data, table)); sum != payload.GetDataCrc32C() {
			return nil, goerr.Wrap(types.ErrAssertion, "secret payload checksum mismatch", goerr.V("name", name))
		}
	}

	return payload.Data, nil
}

func (x *Client) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close secret manager client")
	}
	return nil
}
