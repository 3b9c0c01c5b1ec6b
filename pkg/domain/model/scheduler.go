package model

import (
	"fmt"

	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// SchedulerJob is a Cloud Scheduler job. Exactly one of PubSubTarget and HTTPTarget should be set.
type SchedulerJob struct {
	// Name is the fully qualified name, projects/{project}/locations/{location}/jobs/{id}
	Name        string
	Description string
	Schedule    string
	TimeZone    string
	State       string

	PubSubTarget *PubSubTarget
	HTTPTarget   *HTTPTarget
}

// SchedulerLocation is a location where Cloud Scheduler jobs can be created
type SchedulerLocation struct {
	ID          types.GoogleLocation `json:"id"`
	Name        string               `json:"name"`
	DisplayName string               `json:"display_name,omitempty"`
	Labels      map[string]string    `json:"labels,omitempty"`
}

type PubSubTarget struct {
	// TopicName is the fully qualified name, projects/{project}/topics/{topic}
	TopicName  string
	Data       []byte
	Attributes map[string]string
}

type HTTPTarget struct {
	URI     string
	Method  string
	Headers map[string]string
	Body    []byte
}

func ProjectPath(project types.GoogleProjectID) string {
	return "projects/" + project.String()
}

func SchedulerLocationPath(project types.GoogleProjectID, location types.GoogleLocation) string {
	return fmt.Sprintf("projects/%s/locations/%s", project, location)
}

func SchedulerJobPath(project types.GoogleProjectID, location types.GoogleLocation, job types.SchedulerJobID) string {
	return fmt.Sprintf("projects/%s/locations/%s/jobs/%s", project, location, job)
}

func TopicPath(project types.GoogleProjectID, topic types.PubSubTopicID) string {
	return fmt.Sprintf("projects/%s/topics/%s", project, topic)
}

func SubscriptionPath(project types.GoogleProjectID, sub types.PubSubSubscriptionID) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", project, sub)
}
