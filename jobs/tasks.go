package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPOSImport executes one accepted POS import run.
	TaskPOSImport = "pos:import"
)

// POSImportPayload identifies the run to execute.
type POSImportPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// NewPOSImportTask constructs an Asynq task for one import run.
func NewPOSImportTask(runID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(POSImportPayload{RunID: runID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPOSImport, data), nil
}
