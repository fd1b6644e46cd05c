package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type testResource struct {
	id     uuid.UUID
	fields Fields
}

func (r *testResource) GetID() uuid.UUID { return r.id }
func (r *testResource) Kind() string     { return "test_resource" }
func (r *testResource) Agent() *Fields   { return &r.fields }

func testCapability() Capability {
	return Capability{
		Kind: "test_resource",
		Action: UIAction{
			Name:    "start",
			Label:   "Start Generator",
			Icon:    "Sparkles",
			Variant: "primary",
			Enabled: func(r Resource) bool { return r.Agent().Status.CanStart() },
		},
		ResolveContext: func(ctx context.Context, r Resource) (map[string]any, error) {
			return map[string]any{}, nil
		},
		SystemPrompt: func(contextObj map[string]any) string { return "prompt" },
		BuildTools:   func(r Resource, save SaveFunc) []Tool { return nil },
		CompileArtifacts: func(r Resource) ([]ArtifactDraft, error) {
			return []ArtifactDraft{{FileName: "out.html", FileType: "html", Content: "<html></html>"}}, nil
		},
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(testCapability()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	capability, err := reg.Lookup("test_resource")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if capability.Kind != "test_resource" {
		t.Fatalf("capability kind: want=%q got=%q", "test_resource", capability.Kind)
	}
	if _, err := reg.Lookup("unknown"); err == nil {
		t.Fatalf("Lookup(unknown): expected error")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(testCapability()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(testCapability()); err == nil {
		t.Fatalf("Register duplicate: expected error")
	}
}

func TestRegistryRejectsIncompleteCapability(t *testing.T) {
	reg := NewRegistry()
	capability := testCapability()
	capability.CompileArtifacts = nil
	if err := reg.Register(capability); err == nil {
		t.Fatalf("Register without CompileArtifacts: expected error")
	}
}

func TestRegistryActionsEnablement(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(testCapability()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := &testResource{id: uuid.New()}
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusIdle, true},
		{StatusFailed, true},
		{StatusGenerating, false},
		{StatusCompleted, false},
	}
	for _, tc := range cases {
		res.fields.Status = tc.status
		actions := reg.Actions(res)
		if len(actions) != 1 {
			t.Fatalf("Actions(%s): want=1 action got=%d", tc.status, len(actions))
		}
		a := actions[0]
		if a.Enabled != tc.want {
			t.Fatalf("Actions(%s).Enabled: want=%v got=%v", tc.status, tc.want, a.Enabled)
		}
		if a.Label != "Start Generator" || a.Icon != "Sparkles" || a.Variant != "primary" {
			t.Fatalf("action metadata mismatch: %+v", a)
		}
	}
}

func TestRegistryActionsUnknownKind(t *testing.T) {
	reg := NewRegistry()
	if actions := reg.Actions(&testResource{id: uuid.New()}); actions != nil {
		t.Fatalf("Actions for unregistered kind: want=nil got=%v", actions)
	}
}
