package agent

import (
	"context"
	"fmt"
	"sync"
)

// ArtifactDraft is the compiler's output before storage: a file name, an
// enumerated type (html|pdf|json) and the rendered content. Persisting
// drafts is the orchestrator's job, not the compiler's.
type ArtifactDraft struct {
	FileName string
	FileType string
	Content  string
}

// SaveFunc persists the current domain fields of a resource without
// changing its run status. Tools call it after every mutation so partial
// content is observable before the run completes.
type SaveFunc func(ctx context.Context) error

// UIAction is the per-type start-action metadata that the TS original hung
// off decorators; here it is plain registration data.
type UIAction struct {
	Name    string
	Label   string
	Icon    string
	Variant string
	Enabled func(r Resource) bool
}

// Capability supplies the four subtype operations of an agent resource as
// data. One Capability is registered per resource kind at startup.
type Capability struct {
	Kind   string
	Action UIAction

	ResolveContext   func(ctx context.Context, r Resource) (map[string]any, error)
	SystemPrompt     func(contextObj map[string]any) string
	BuildTools       func(r Resource, save SaveFunc) []Tool
	CompileArtifacts func(r Resource) ([]ArtifactDraft, error)
}

type Registry struct {
	mu     sync.RWMutex
	byKind map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{byKind: make(map[string]Capability)}
}

func (reg *Registry) Register(capability Capability) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if capability.Kind == "" {
		return fmt.Errorf("capability kind required")
	}
	if capability.ResolveContext == nil || capability.SystemPrompt == nil || capability.BuildTools == nil || capability.CompileArtifacts == nil {
		return fmt.Errorf("capability %q is missing an operation", capability.Kind)
	}
	if _, exists := reg.byKind[capability.Kind]; exists {
		return fmt.Errorf("capability %q already registered", capability.Kind)
	}
	reg.byKind[capability.Kind] = capability
	return nil
}

func (reg *Registry) Lookup(kind string) (Capability, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	capability, ok := reg.byKind[kind]
	if !ok {
		return Capability{}, fmt.Errorf("no capability registered for kind %q", kind)
	}
	return capability, nil
}

// Actions returns the UI action metadata for a resource, with the
// enablement predicate evaluated against its current state.
func (reg *Registry) Actions(r Resource) []ActionState {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	capability, ok := reg.byKind[r.Kind()]
	if !ok {
		return nil
	}
	enabled := true
	if capability.Action.Enabled != nil {
		enabled = capability.Action.Enabled(r)
	}
	return []ActionState{{
		Name:    capability.Action.Name,
		Label:   capability.Action.Label,
		Icon:    capability.Action.Icon,
		Variant: capability.Action.Variant,
		Enabled: enabled,
	}}
}

type ActionState struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Icon    string `json:"icon"`
	Variant string `json:"variant"`
	Enabled bool   `json:"enabled"`
}
