// Package research implements the assistant's two-phase product research
// flow: intent classification, vehicle binding, the explicit research state
// machine, and the orchestrator that drives retailer tools and the LLM.
package research

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/llm"
	"github.com/tbourn/go-garage-backend/internal/retail"
)

// Status is the state machine position.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusAwaitingRefinement Status = "awaiting_refinement"
	StatusCompleted          Status = "completed"
)

// Phase names the last research phase that ran.
type Phase string

const (
	PhaseDiscovery      Phase = "discovery"
	PhaseProductFinding Phase = "product_finding"
)

// Metadata types stored on assistant messages.
const (
	MetadataDiscovery       = "discovery"
	MetadataProductResearch = "product_research"
)

// VehicleContext is the vehicle a research flow is scoped to. ID is empty
// when the vehicle came from free text rather than the collection.
type VehicleContext struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Year     int    `json:"year,omitempty"`
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// VehicleContextFrom converts a collection record.
func VehicleContextFrom(v domain.Vehicle) *VehicleContext {
	return &VehicleContext{
		ID:       v.ID,
		Type:     string(retail.ParseVehicleType(v.Type)),
		Year:     v.Year,
		Make:     v.Make,
		Model:    v.Model,
		Nickname: v.Nickname,
	}
}

// Label renders "2019 Honda CBR650F".
func (v *VehicleContext) Label() string {
	if v == nil {
		return ""
	}
	var parts []string
	if v.Year > 0 {
		parts = append(parts, strconv.Itoa(v.Year))
	}
	for _, s := range []string{v.Make, v.Model} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return v.Nickname
	}
	return strings.Join(parts, " ")
}

// VehicleType returns the retail type used to pick tools.
func (v *VehicleContext) VehicleType() retail.VehicleType {
	if v == nil {
		return retail.Car
	}
	return retail.ParseVehicleType(v.Type)
}

// DiscoveryOption is one product family or attribute surfaced in discovery.
type DiscoveryOption struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DiscoveryResult is the output of the discovery phase.
type DiscoveryResult struct {
	Category       string            `json:"category"`
	Summary        string            `json:"summary"`
	Options        []DiscoveryOption `json:"options,omitempty"`
	Considerations []string          `json:"considerations,omitempty"`
	Questions      []string          `json:"questions,omitempty"`
	Products       []retail.Product  `json:"products,omitempty"`
	Sources        []llm.Source      `json:"sources,omitempty"`
}

// Recommendation is one ranked pick in the product-finding phase.
type Recommendation struct {
	Rank      int      `json:"rank"`
	Name      string   `json:"name"`
	Brand     string   `json:"brand,omitempty"`
	Retailer  string   `json:"retailer,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	URL       string   `json:"url,omitempty"`
	Reasoning string   `json:"reasoning"`
	Pros      []string `json:"pros,omitempty"`
	Cons      []string `json:"cons,omitempty"`
}

// ResearchResult is the output of the product-finding phase.
type ResearchResult struct {
	Category        string           `json:"category"`
	Summary         string           `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	FitmentNote     string           `json:"fitmentNote,omitempty"`
	Products        []retail.Product `json:"products,omitempty"`
	Sources         []llm.Source     `json:"sources,omitempty"`
}

// State is the research state of one chat session. Transitions go through
// BeginDiscovery, CompleteResearch and Reset; the zero value is idle.
type State struct {
	Status          Status           `json:"status"`
	Phase           Phase            `json:"phase,omitempty"`
	ProductCategory string           `json:"productCategory,omitempty"`
	Query           string           `json:"query,omitempty"`
	VehicleID       string           `json:"vehicleId,omitempty"`
	Vehicle         *VehicleContext  `json:"vehicle,omitempty"`
	Discovery       *DiscoveryResult `json:"discoveryResult,omitempty"`
	Preferences     []string         `json:"userPreferences,omitempty"`
}

// AwaitingRefinement reports whether the next user message is expected to
// narrow the previous discovery.
func (s State) AwaitingRefinement() bool {
	return s.Status == StatusAwaitingRefinement
}

// BeginDiscovery moves any state into awaiting_refinement after a discovery
// run. Earlier preferences are dropped since a new category starts over.
func BeginDiscovery(_ State, category, query string, vehicle *VehicleContext, d *DiscoveryResult) State {
	next := State{
		Status:          StatusAwaitingRefinement,
		Phase:           PhaseDiscovery,
		ProductCategory: category,
		Query:           query,
		Vehicle:         vehicle,
		Discovery:       d,
	}
	if vehicle != nil {
		next.VehicleID = vehicle.ID
	}
	return next
}

// CompleteResearch records the refinement and marks the flow completed. The
// category and vehicle carry over from discovery.
func CompleteResearch(s State, refinement string) State {
	next := s
	next.Status = StatusCompleted
	next.Phase = PhaseProductFinding
	next.Preferences = append(append([]string(nil), s.Preferences...), strings.TrimSpace(refinement))
	return next
}

// Reset returns the idle state.
func Reset() State {
	return State{Status: StatusIdle}
}

// Normalize fills Status for states recorded before it existed: a stored
// discovery phase means the flow is waiting on a refinement.
func (s State) Normalize() State {
	switch {
	case s.Status != "":
	case s.Phase == PhaseDiscovery:
		s.Status = StatusAwaitingRefinement
	case s.Phase == PhaseProductFinding:
		s.Status = StatusCompleted
	default:
		s.Status = StatusIdle
	}
	return s
}

// Metadata is the JSON stored on assistant messages for rich rendering and
// for resuming research.
type Metadata struct {
	Type            string           `json:"type"`
	DiscoveryResult *DiscoveryResult `json:"discoveryResult,omitempty"`
	ResearchResult  *ResearchResult  `json:"researchResult,omitempty"`
	VehicleContext  *VehicleContext  `json:"vehicleContext,omitempty"`
	ResearchState   State            `json:"researchState"`
}

// StateFromMetadata recovers the research state from an assistant message's
// metadata. ok is false when raw carries no state.
func StateFromMetadata(raw []byte) (State, bool) {
	if len(raw) == 0 {
		return State{}, false
	}
	var m struct {
		ResearchState *State `json:"researchState"`
	}
	if err := json.Unmarshal(raw, &m); err != nil || m.ResearchState == nil {
		return State{}, false
	}
	return m.ResearchState.Normalize(), true
}
