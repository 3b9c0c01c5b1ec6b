package secret

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Mock serves secret payloads keyed by fully qualified version name
type Mock struct {
	Secrets  map[string][]byte
	Accessed []string
	Closed   bool

	mutex sync.Mutex
}

var _ interfaces.SecretManager = &Mock{}

func NewMock(secrets map[string][]byte) *Mock {
	if secrets == nil {
		secrets = map[string][]byte{}
	}
	return &Mock{Secrets: secrets}
}

func (x *Mock) AccessSecretVersion(ctx context.Context, name string) ([]byte, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Accessed = append(x.Accessed, name)
	data, ok := x.Secrets[name]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "secret version not found", goerr.V("name", name))
	}
	return data, nil
}

func (x *Mock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Closed = true
	return nil
}
