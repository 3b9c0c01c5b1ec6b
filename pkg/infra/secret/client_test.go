package secret_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/infra/secret"
	"github.com/secmon-lab/gcu/pkg/utils"
)

func TestAccessSecretVersion(t *testing.T) {
	name := utils.LoadEnv(t, "TEST_SECRET_VERSION_NAME")

	ctx := context.Background()
	client := gt.R1(secret.New(ctx)).NoError(t)
	defer utils.SafeClose(client)

	data := gt.R1(client.AccessSecretVersion(ctx, name)).NoError(t)
	gt.True(t, len(data) > 0)
}
