package agent

// Status is the lifecycle state of an agent resource. A run walks
// idle -> gathering_context -> generating -> compiling_artifacts -> completed,
// and any non-terminal state may drop to failed.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusGatheringContext   Status = "gathering_context"
	StatusGenerating         Status = "generating"
	StatusCompilingArtifacts Status = "compiling_artifacts"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

// CanStart reports whether a new run may be claimed from this state.
// In-flight and completed resources are never restartable.
func (s Status) CanStart() bool {
	return s == StatusIdle || s == StatusFailed
}

func (s Status) InFlight() bool {
	switch s {
	case StatusGatheringContext, StatusGenerating, StatusCompilingArtifacts:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var forward = map[Status]Status{
	StatusGatheringContext:   StatusGenerating,
	StatusGenerating:         StatusCompilingArtifacts,
	StatusCompilingArtifacts: StatusCompleted,
}

// CanTransition validates a single state change. Starts (idle|failed ->
// gathering_context) are claimed atomically by the repo layer; everything
// else must either follow the forward chain or fail from a non-terminal
// state.
func CanTransition(from, to Status) bool {
	if to == StatusFailed {
		return !from.Terminal()
	}
	if to == StatusGatheringContext {
		return from.CanStart()
	}
	return forward[from] == to
}
