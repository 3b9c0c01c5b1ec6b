package scheduler_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/scheduler"
	"github.com/secmon-lab/gcu/pkg/utils"
)

func TestListJobs(t *testing.T) {
	var (
		projectID = types.GoogleProjectID(utils.LoadEnv(t, "TEST_SCHEDULER_PROJECT_ID"))
		location  = types.GoogleLocation(utils.LoadEnv(t, "TEST_SCHEDULER_LOCATION"))
	)

	ctx := context.Background()
	client := gt.R1(scheduler.New(ctx)).NoError(t)
	defer utils.SafeClose(client)

	gt.R1(client.ListJobs(ctx, model.SchedulerLocationPath(projectID, location))).NoError(t)
}

func TestMockLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := scheduler.NewMock()

	parent := model.SchedulerLocationPath("p", "asia-northeast1")
	name := model.SchedulerJobPath("p", "asia-northeast1", "nightly")

	created := gt.R1(mock.CreateJob(ctx, parent, &model.SchedulerJob{
		Name:     name,
		Schedule: "0 3 * * *",
		HTTPTarget: &model.HTTPTarget{
			URI:    "https://example.com/run",
			Method: "POST",
		},
	})).NoError(t)
	gt.Equal(t, created.State, scheduler.StateEnabled)

	paused := gt.R1(mock.PauseJob(ctx, name)).NoError(t)
	gt.Equal(t, paused.State, scheduler.StatePaused)

	gt.A(t, gt.R1(mock.ListJobs(ctx, parent)).NoError(t)).Length(1)

	gt.NoError(t, mock.DeleteJob(ctx, name))
	_, err := mock.GetJob(ctx, name)
	gt.Error(t, err).Is(types.ErrNotFound)
}
