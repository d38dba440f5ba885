package skill

import (
	"context"
	"sort"
	"time"
)

// Tier classifies how far outside the process a skill reaches.
// L0 skills run locally, L1 skills call an external API through an injected
// client, and L2 skills additionally require the platform analysis adapter.
type Tier string

const (
	TierL0 Tier = "L0"
	TierL1 Tier = "L1"
	TierL2 Tier = "L2"
)

// ParamSpec describes one parameter of an action.
type ParamSpec struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // string, int, float, bool, []string
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ActionSpec describes one action a skill exposes.
type ActionSpec struct {
	Name      string        `json:"name"`
	Summary   string        `json:"summary,omitempty"`
	Params    []ParamSpec   `json:"params,omitempty"`
	Cacheable bool          `json:"cacheable,omitempty"`
	CacheTTL  time.Duration `json:"cache_ttl,omitempty"`
}

// Info describes a skill for the catalog and the HTTP surface.
type Info struct {
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Tier            Tier         `json:"tier"`
	Actions         []ActionSpec `json:"actions"`
	RequiresClient  bool         `json:"requires_client"`
	RequiresAdapter bool         `json:"requires_adapter"`
}

// Action looks up an action spec by name.
func (i Info) Action(name string) (ActionSpec, bool) {
	for _, a := range i.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return ActionSpec{}, false
}

// ActionNames returns the skill's action names, sorted.
func (i Info) ActionNames() []string {
	names := make([]string, 0, len(i.Actions))
	for _, a := range i.Actions {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// Request carries one dispatched invocation into a handler. Collaborators
// are resolved by the Runner before Execute is called: Client is non-nil for
// skills that declare RequiresClient, Adapter for skills that declare
// RequiresAdapter.
type Request struct {
	Action       string
	Params       Params
	Client       Client
	Adapter      AnalysisAdapter
	InvocationID string
}

// Response is what a handler returns on success. Result is the textual
// payload shown to the caller; the Runner redacts it before it leaves the
// envelope. Data carries structured extras that end up in the envelope
// metadata.
type Response struct {
	Result string
	Data   map[string]any
}

// Handler is the contract every skill implements. Validate must be free of
// I/O and safe to call concurrently; Execute performs at most the upstream
// calls for one action and honors ctx cancellation.
type Handler interface {
	Name() string
	Info() Info
	Validate(action string, params Params) error
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// HealthChecker is optionally implemented by skills that can cheaply verify
// their upstream is reachable. The catalog's HealthCheck drives it.
type HealthChecker interface {
	HealthCheck(ctx context.Context, client Client) error
}
