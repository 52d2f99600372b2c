package workflow

import (
	"strings"
)

// StateName identifies a workflow state. Comparison is case-insensitive to
// match repository data entered by hand.
type StateName string

// TriggerName identifies a workflow transition action.
type TriggerName string

// RoleName identifies a workflow role allowed to fire a transition.
type RoleName string

// Well-known states shared by the standard workflows.
const (
	StateDraft     StateName = "Draft"
	StateReview    StateName = "Review"
	StatePending   StateName = "Pending"
	StateLive      StateName = "Live"
	StateQuickEdit StateName = "Quick Edit"
	StateArchive   StateName = "Archive"
	StateRecycled  StateName = "Recycled"
)

// Well-known triggers shared by the standard workflows.
const (
	TriggerSubmit      TriggerName = "Submit"
	TriggerApprove     TriggerName = "Approve"
	TriggerReject      TriggerName = "Reject"
	TriggerPublish     TriggerName = "Publish"
	TriggerArchive     TriggerName = "Archive"
	TriggerEdit        TriggerName = "Quick Edit"
	TriggerForceToLive TriggerName = "forcetolive"
)

// LocalContentWorkflow is the distinguished workflow that marks an item as
// local content owned by its parent page.
const LocalContentWorkflow = "LocalContent"

func (s StateName) Equals(other StateName) bool {
	return strings.EqualFold(string(s), string(other))
}

func (t TriggerName) Equals(other TriggerName) bool {
	return strings.EqualFold(string(t), string(other))
}

// Transition is one outgoing edge of a state. AllowAllRoles transitions are
// available to every caller; otherwise the caller needs at least one of
// Roles. The Default transition sorts first in trigger listings.
type Transition struct {
	Trigger       TriggerName
	To            StateName
	Default       bool
	AllowAllRoles bool
	Roles         []RoleName
}

// Permits reports whether any of the roles may fire this transition.
func (t Transition) Permits(roles []string) bool {
	if t.AllowAllRoles {
		return true
	}
	for _, have := range roles {
		for _, want := range t.Roles {
			if strings.EqualFold(have, string(want)) {
				return true
			}
		}
	}
	return false
}

// State is a named workflow state with its ordered outgoing transitions.
// Public marks states whose content is considered published.
type State struct {
	Name        StateName
	Public      bool
	Transitions []Transition
}

// TransitionFor returns the state's outgoing transition for the trigger.
func (s *State) TransitionFor(trigger TriggerName) (Transition, bool) {
	for _, tr := range s.Transitions {
		if tr.Trigger.Equals(trigger) {
			return tr, true
		}
	}
	return Transition{}, false
}

// AvailableTriggers returns the trigger names the given roles may fire from
// this state, in definition order with the default transition first. An
// empty result is a normal outcome, not an error.
func (s *State) AvailableTriggers(roles []string) []TriggerName {
	var out []TriggerName
	for _, tr := range s.Transitions {
		if !tr.Permits(roles) {
			continue
		}
		if tr.Default {
			out = append([]TriggerName{tr.Trigger}, out...)
			continue
		}
		out = append(out, tr.Trigger)
	}
	return out
}

// Definition is a named workflow: an ordered set of states and their
// transitions, resolved once and shared read-only afterwards.
type Definition struct {
	Name   string
	States []State
}

// State looks up a state by name, case-insensitively.
func (d *Definition) State(name StateName) (*State, bool) {
	for i := range d.States {
		if d.States[i].Name.Equals(name) {
			return &d.States[i], true
		}
	}
	return nil, false
}

// PublicStates returns the names of states flagged public.
func (d *Definition) PublicStates() []StateName {
	var out []StateName
	for _, st := range d.States {
		if st.Public {
			out = append(out, st.Name)
		}
	}
	return out
}

// Registry holds workflow definitions by name.
type Registry struct {
	defs         map[string]*Definition
	localContent string
}

// NewRegistry builds a registry from the given definitions.
func NewRegistry(defs ...*Definition) *Registry {
	r := &Registry{
		defs:         make(map[string]*Definition, len(defs)),
		localContent: LocalContentWorkflow,
	}
	for _, def := range defs {
		r.defs[strings.ToLower(def.Name)] = def
	}
	return r
}

// SetLocalContentWorkflow overrides which workflow name marks items as
// local content. A blank name keeps the current one.
func (r *Registry) SetLocalContentWorkflow(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	r.localContent = name
}

// Definition looks up a workflow by name, case-insensitively.
func (r *Registry) Definition(name string) (*Definition, bool) {
	def, ok := r.defs[strings.ToLower(strings.TrimSpace(name))]
	return def, ok
}

// Names returns the registered workflow names in unspecified order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def.Name)
	}
	return out
}

// IsLocalContent reports whether the named workflow is the distinguished
// local-content workflow.
func (r *Registry) IsLocalContent(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), r.localContent)
}

// standardStates builds the shared Draft→Review→Pending→Live shape used by
// both default workflows.
func standardStates(contributor, editor, admin RoleName) []State {
	return []State{
		{
			Name: StateDraft,
			Transitions: []Transition{
				{Trigger: TriggerSubmit, To: StateReview, Default: true, AllowAllRoles: true},
				{Trigger: TriggerApprove, To: StatePending, Roles: []RoleName{editor, admin}},
			},
		},
		{
			Name: StateReview,
			Transitions: []Transition{
				{Trigger: TriggerApprove, To: StatePending, Default: true, Roles: []RoleName{editor, admin}},
				{Trigger: TriggerReject, To: StateDraft, Roles: []RoleName{editor, admin}},
			},
		},
		{
			Name: StatePending,
			Transitions: []Transition{
				{Trigger: TriggerForceToLive, To: StateLive, Default: true, AllowAllRoles: true},
				{Trigger: TriggerPublish, To: StateLive, Roles: []RoleName{admin}},
				{Trigger: TriggerReject, To: StateDraft, Roles: []RoleName{editor, admin}},
			},
		},
		{
			Name:   StateLive,
			Public: true,
			Transitions: []Transition{
				{Trigger: TriggerEdit, To: StateQuickEdit, Default: true, Roles: []RoleName{contributor, editor, admin}},
				{Trigger: TriggerArchive, To: StateArchive, Roles: []RoleName{admin}},
			},
		},
		{
			Name: StateQuickEdit,
			Transitions: []Transition{
				{Trigger: TriggerApprove, To: StatePending, Default: true, Roles: []RoleName{editor, admin}},
				{Trigger: TriggerForceToLive, To: StateLive, AllowAllRoles: true},
			},
		},
		{
			Name: StateArchive,
			Transitions: []Transition{
				{Trigger: TriggerSubmit, To: StateReview, Default: true, Roles: []RoleName{editor, admin}},
			},
		},
	}
}

// DefaultWorkflowName is the workflow new site content is assigned to.
const DefaultWorkflowName = "Default Workflow"

// DefaultRegistry returns the standard site workflow plus the local-content
// workflow, matching the repository seed data.
func DefaultRegistry() *Registry {
	return DefaultRegistryFor("")
}

// DefaultRegistryFor returns the standard registry with the local-content
// workflow registered under the given name. A blank name uses
// LocalContentWorkflow.
func DefaultRegistryFor(localContent string) *Registry {
	const (
		roleContributor RoleName = "Contributor"
		roleEditor      RoleName = "Editor"
		roleAdmin       RoleName = "Admin"
	)
	localContent = strings.TrimSpace(localContent)
	if localContent == "" {
		localContent = LocalContentWorkflow
	}
	site := &Definition{
		Name:   DefaultWorkflowName,
		States: standardStates(roleContributor, roleEditor, roleAdmin),
	}
	local := &Definition{
		Name:   localContent,
		States: standardStates(roleContributor, roleEditor, roleAdmin),
	}
	r := NewRegistry(site, local)
	r.SetLocalContentWorkflow(localContent)
	return r
}
