package agent

import "fmt"

// Stage identifies the workflow phase that raised a run failure.
type Stage string

const (
	StageContext     Stage = "context_resolution"
	StageGeneration  Stage = "generation"
	StageBilling     Stage = "billing"
	StageArtifacts   Stage = "artifact_compilation"
	StagePersistence Stage = "persistence"
)

// RunError wraps a failure raised between the first state transition and
// completion. The orchestrator records the message on the resource and
// re-raises the wrapped error to the caller.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

func NewRunError(stage Stage, err error) *RunError {
	return &RunError{Stage: stage, Err: err}
}
