package workflow_test

import (
	"testing"

	"copydesk/internal/workflow"
)

func TestAvailableTriggersPutsDefaultFirst(t *testing.T) {
	registry := workflow.DefaultRegistry()
	def, ok := registry.Definition(workflow.DefaultWorkflowName)
	if !ok {
		t.Fatal("default workflow missing from registry")
	}
	state, ok := def.State(workflow.StatePending)
	if !ok {
		t.Fatal("Pending state missing")
	}

	triggers := state.AvailableTriggers([]string{"Admin"})
	if len(triggers) != 3 {
		t.Fatalf("expected 3 triggers for admin, got %v", triggers)
	}
	if !triggers[0].Equals(workflow.TriggerForceToLive) {
		t.Fatalf("expected default trigger first, got %v", triggers)
	}
}

func TestAvailableTriggersFiltersByRole(t *testing.T) {
	registry := workflow.DefaultRegistry()
	def, _ := registry.Definition(workflow.DefaultWorkflowName)
	state, _ := def.State(workflow.StatePending)

	contributor := state.AvailableTriggers([]string{"Contributor"})
	for _, trigger := range contributor {
		if trigger.Equals(workflow.TriggerPublish) {
			t.Fatalf("contributor should not see Publish: %v", contributor)
		}
	}
	if len(contributor) != 1 || !contributor[0].Equals(workflow.TriggerForceToLive) {
		t.Fatalf("contributor should only see the open transition, got %v", contributor)
	}

	if got := state.AvailableTriggers(nil); len(got) != 1 {
		t.Fatalf("roleless caller should still see open transitions, got %v", got)
	}
}

func TestTransitionForIsCaseInsensitive(t *testing.T) {
	registry := workflow.DefaultRegistry()
	def, _ := registry.Definition("default workflow")
	if def == nil {
		t.Fatal("workflow lookup should be case-insensitive")
	}
	state, ok := def.State("pending")
	if !ok {
		t.Fatal("state lookup should be case-insensitive")
	}
	tr, ok := state.TransitionFor("FORCETOLIVE")
	if !ok {
		t.Fatal("trigger lookup should be case-insensitive")
	}
	if !tr.To.Equals(workflow.StateLive) {
		t.Fatalf("forcetolive should land in Live, got %s", tr.To)
	}
}

func TestDefaultRegistryShape(t *testing.T) {
	registry := workflow.DefaultRegistry()

	names := registry.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 workflows, got %v", names)
	}
	if !registry.IsLocalContent(workflow.LocalContentWorkflow) {
		t.Fatal("LocalContent should be flagged local")
	}
	if registry.IsLocalContent(workflow.DefaultWorkflowName) {
		t.Fatal("Default Workflow should not be flagged local")
	}

	def, _ := registry.Definition(workflow.DefaultWorkflowName)
	public := def.PublicStates()
	if len(public) != 1 || !public[0].Equals(workflow.StateLive) {
		t.Fatalf("expected Live as the only public state, got %v", public)
	}
}
