package model

import (
	"net/http"
	"time"

	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// HTTPTaskRequest describes an HTTP target task to enqueue. Payload is sent as JSON.
type HTTPTaskRequest struct {
	Location types.GoogleLocation
	Queue    types.TaskQueueID
	URL      string
	// Method defaults to POST
	Method  string
	Payload any
	// Delay schedules the task in the future when positive
	Delay time.Duration
	// ServiceAccountEmail attaches an OIDC token of the account to the request
	ServiceAccountEmail string
}

func (x *HTTPTaskRequest) HTTPMethod() string {
	if x.Method == "" {
		return http.MethodPost
	}
	return x.Method
}

type Task struct {
	Name          types.TaskName
	URL           string
	Method        string
	ScheduleTime  time.Time
	CreateTime    time.Time
	DispatchCount int32
}

// TaskSpec is the marshaled form of an HTTP task handed to the Cloud Tasks client
type TaskSpec struct {
	URL                 string
	Method              string
	Headers             map[string]string
	Body                []byte
	ScheduleTime        time.Time
	ServiceAccountEmail string
}
