package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/controller/cmd"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/infra"
	"github.com/secmon-lab/gcu/pkg/infra/bq"
	"github.com/secmon-lab/gcu/pkg/infra/credential"
	"github.com/secmon-lab/gcu/pkg/infra/cs"
	"github.com/secmon-lab/gcu/pkg/infra/firestore"
	"github.com/secmon-lab/gcu/pkg/infra/pubsub"
	"github.com/secmon-lab/gcu/pkg/infra/scheduler"
	"golang.org/x/oauth2/google"
)

func TestFlags(t *testing.T) {
	// Detecting flags conflicts
	testCases := [][]string{
		{"bq", "query"},
		{"bq", "load"},
		{"storage", "upload"},
		{"storage", "enqueue"},
		{"pubsub", "create-subscription"},
		{"secret", "get"},
		{"tasks", "create"},
		{"scheduler", "run"},
		{"scheduler", "locations"},
		{"firestore", "query"},
		{"datastore", "clear"},
		{"check"},
		{"serve"},
		{"client", "health"},
	}

	for _, tc := range testCases {
		t.Run(filepath.Join(tc...), func(t *testing.T) {
			argv := append(append([]string{"gcu"}, tc...), "--help")
			gt.NoError(t, cmd.Run(argv))
		})
	}
}

// run executes gcu with fake ADC credentials and the given backends, and returns stdout
func run(t *testing.T, factories *infra.Factories, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cmd.Run(append([]string{"gcu", "--adc-fallback"}, args...),
		cmd.WithOutput(&out),
		cmd.WithHandlerOptions(
			handler.WithFactories(factories),
			handler.WithResolverOptions(
				credential.WithLookupEnv(func(string) (string, bool) { return "", false }),
				credential.WithReadFile(func(string) ([]byte, error) { return nil, fs.ErrNotExist }),
				credential.WithFindDefault(func(ctx context.Context, scopes ...string) (*google.Credentials, error) {
					return &google.Credentials{ProjectID: "test-project"}, nil
				}),
			),
		),
	)
	return out.String(), err
}

func TestStorageCommands(t *testing.T) {
	csMock := cs.NewGeneralMock()
	factories := infra.New(infra.WithCloudStorage(infra.Static[interfaces.CloudStorage](csMock)))

	src := filepath.Join(t.TempDir(), "data.json")
	gt.NoError(t, os.WriteFile(src, []byte(`{"a":1}`), 0600))

	gt.R1(run(t, factories, "storage", "upload", "--content-type", "application/json", src, "gs://bucket/dir/data.json")).NoError(t)
	gt.Equal(t, csMock.Buckets["bucket"]["dir/data.json"].ContentType, "application/json")

	out := gt.R1(run(t, factories, "storage", "download", "gs://bucket/dir/data.json")).NoError(t)
	gt.Equal(t, out, `{"a":1}`)

	gt.R1(run(t, factories, "storage", "move", "gs://bucket/dir/data.json", "gs://bucket/moved/data.json")).NoError(t)

	out = gt.R1(run(t, factories, "storage", "list", "gs://bucket/moved/")).NoError(t)
	var objects []map[string]any
	gt.NoError(t, json.Unmarshal([]byte(out), &objects))
	gt.A(t, objects).Length(1).At(0, func(t testing.TB, v map[string]any) {
		gt.Equal(t, v["name"], any("moved/data.json"))
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := run(t, factories, "storage", "download")
		gt.Error(t, err).Is(types.ErrInvalidOption)
	})
}

func TestPubSubCommands(t *testing.T) {
	psMock := pubsub.NewMock()
	factories := infra.New(infra.WithPubSub(infra.Static[interfaces.PubSub](psMock)))

	gt.R1(run(t, factories, "pubsub", "create-topic", "events")).NoError(t)
	gt.R1(run(t, factories, "pubsub", "create-subscription", "--topic", "events", "events-pull")).NoError(t)
	// idempotent
	gt.R1(run(t, factories, "pubsub", "create-topic", "events")).NoError(t)

	id := gt.R1(run(t, factories, "pubsub", "publish", "--attr", "k=v", "events", "hello")).NoError(t)
	gt.V(t, id).NotEqual("")

	out := gt.R1(run(t, factories, "pubsub", "pull", "--ack", "events-pull")).NoError(t)
	var msgs []map[string]any
	gt.NoError(t, json.Unmarshal([]byte(out), &msgs))
	gt.A(t, msgs).Length(1).At(0, func(t testing.TB, v map[string]any) {
		gt.Equal(t, v["data"], any("hello"))
	})
	gt.A(t, psMock.Subscriptions["events-pull"].Acked).Length(1)
}

func TestSchedulerLocationsCommand(t *testing.T) {
	schedMock := scheduler.NewMock()
	schedMock.Locations = []*model.SchedulerLocation{{ID: "asia-northeast1", DisplayName: "Tokyo"}}
	factories := infra.New(infra.WithScheduler(infra.Static[interfaces.Scheduler](schedMock)))

	out := gt.R1(run(t, factories, "scheduler", "locations")).NoError(t)
	var locations []map[string]any
	gt.NoError(t, json.Unmarshal([]byte(out), &locations))
	gt.A(t, locations).Length(1).At(0, func(t testing.TB, v map[string]any) {
		gt.Equal(t, v["id"], any("asia-northeast1"))
		gt.Equal(t, v["name"], any("projects/test-project/locations/asia-northeast1"))
	})
}

func TestFirestoreCommands(t *testing.T) {
	fsMock := firestore.NewMock()
	factories := infra.New(infra.WithFirestore(infra.Static[interfaces.Firestore](fsMock)))

	gt.R1(run(t, factories, "firestore", "set", "users", "alice", `{"role":"admin","age":30}`)).NoError(t)
	gt.R1(run(t, factories, "firestore", "set", "--merge", "users", "alice", `{"team":"sec"}`)).NoError(t)
	gt.R1(run(t, factories, "firestore", "set", "users", "bob", `{"role":"user"}`)).NoError(t)

	out := gt.R1(run(t, factories, "firestore", "get", "users", "alice")).NoError(t)
	var doc map[string]any
	gt.NoError(t, json.Unmarshal([]byte(out), &doc))
	gt.Equal(t, doc["role"], any("admin"))
	gt.Equal(t, doc["team"], any("sec"))

	out = gt.R1(run(t, factories, "firestore", "query", "--where", `role=="user"`, "users")).NoError(t)
	var docs []map[string]any
	gt.NoError(t, json.Unmarshal([]byte(out), &docs))
	gt.A(t, docs).Length(1)

	out = gt.R1(run(t, factories, "firestore", "get", "users", "carol")).NoError(t)
	gt.Equal(t, out, "null\n")

	t.Run("invalid document", func(t *testing.T) {
		_, err := run(t, factories, "firestore", "set", "users", "dave", `[1,2]`)
		gt.Error(t, err).Is(types.ErrInvalidOption)
	})
}

func TestCheckCommand(t *testing.T) {
	factories := infra.New(infra.WithBigQuery(infra.Static[interfaces.BigQuery](bq.NewGeneralMock())))

	out := gt.R1(run(t, factories, "check", "bigquery")).NoError(t)
	var results []map[string]any
	gt.NoError(t, json.Unmarshal([]byte(out), &results))
	gt.A(t, results).Length(1).At(0, func(t testing.TB, v map[string]any) {
		gt.Equal(t, v["service"], any("bigquery"))
		gt.Equal(t, v["project_id"], any("test-project"))
	})

	_, err := run(t, factories, "check", "compute")
	gt.Error(t, err).Is(types.ErrInvalidOption)
}
