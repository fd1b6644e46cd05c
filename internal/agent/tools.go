package agent

import "context"

// Tool is a named callable the generation adapter may invoke while a run is
// in the generating phase. Execute is allowed to mutate and persist the
// resource's domain fields immediately; it must never touch the run status.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the tool arguments.
	Parameters map[string]any
	Execute    func(ctx context.Context, args map[string]any) (string, error)
}
