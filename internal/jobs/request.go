package jobs

import (
	"fmt"
	"strings"
	"time"
)

// StartRequest reports a new execution in the RUNNING state.
type StartRequest struct {
	JobName string `json:"jobName"`
	RunID   string `json:"runId"`
}

// Validate checks that both identifying fields are present.
func (r StartRequest) Validate() error {
	if strings.TrimSpace(r.JobName) == "" || strings.TrimSpace(r.RunID) == "" {
		return fmt.Errorf("jobName and runId are required")
	}
	return nil
}

// UpdateRequest changes the state of an execution identified by job name
// and run id. Zero fields are left unchanged.
type UpdateRequest struct {
	JobName      string     `json:"jobName"`
	RunID        string     `json:"runId"`
	Status       Status     `json:"status,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// Validate checks the identifying fields.
func (r UpdateRequest) Validate() error {
	if strings.TrimSpace(r.JobName) == "" || strings.TrimSpace(r.RunID) == "" {
		return fmt.Errorf("jobName and runId are required")
	}
	return nil
}
