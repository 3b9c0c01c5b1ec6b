package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

const latestVersion = "latest"

// SecretManager reads secret payloads of one project
type SecretManager struct {
	backend   interfaces.SecretManager
	projectID types.GoogleProjectID
}

func NewSecretManager(backend interfaces.SecretManager, projectID types.GoogleProjectID) *SecretManager {
	return &SecretManager{backend: backend, projectID: projectID}
}

func (x *SecretManager) ProjectID() types.GoogleProjectID { return x.projectID }

// VersionName returns projects/{project}/secrets/{id}/versions/{version}
func (x *SecretManager) VersionName(id types.SecretID, version string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", x.projectID, id, version)
}

// GetSecret returns the payload of the latest version
func (x *SecretManager) GetSecret(ctx context.Context, id types.SecretID) ([]byte, error) {
	return x.access(ctx, "GetSecret", id, latestVersion)
}

func (x *SecretManager) GetSecretVersion(ctx context.Context, id types.SecretID, version string) ([]byte, error) {
	if version == "" {
		version = latestVersion
	}
	return x.access(ctx, "GetSecretVersion", id, version)
}

// GetSecretJSON unmarshals the latest version into dst
func (x *SecretManager) GetSecretJSON(ctx context.Context, id types.SecretID, dst any) error {
	data, err := x.GetSecret(ctx, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return opError(types.ServiceSecretManager, "GetSecretJSON", goerr.Wrap(err, "secret is not valid JSON", goerr.V("secret", id)))
	}
	return nil
}

// FetchSecret satisfies credential.SecretFetcher
func (x *SecretManager) FetchSecret(ctx context.Context, id types.SecretID) ([]byte, error) {
	return x.GetSecret(ctx, id)
}

func (x *SecretManager) access(ctx context.Context, op string, id types.SecretID, version string) ([]byte, error) {
	if id == "" {
		return nil, invalidInput(types.ServiceSecretManager, op, "secret ID is required")
	}
	if x.projectID == "" {
		return nil, invalidInput(types.ServiceSecretManager, op, "project ID is not known", goerr.V("secret", id))
	}

	data, err := x.backend.AccessSecretVersion(ctx, x.VersionName(id, version))
	if err != nil {
		return nil, opError(types.ServiceSecretManager, op, err)
	}
	return data, nil
}

func (x *SecretManager) Close() error {
	return x.backend.Close()
}
