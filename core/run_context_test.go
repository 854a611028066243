package core

import "testing"

func TestRunContext_EmitEventStateAndArtifacts(t *testing.T) {
	rc, emitCh := newRunContextForTest()
	rc.SetState("foo", "bar")
	rc.AddArtifact("file1")
	if err := rc.EmitEvent(NewEvent(rc.RunID, "agent1")); err != nil {
		t.Fatalf("EmitEvent error: %v", err)
	}
	received := <-emitCh
	if received.Actions.StateDelta["foo"].(string) != "bar" {
		t.Fatalf("State delta missing: %+v", received.Actions)
	}
	if received.Actions.ArtifactDelta["file1"] != 1 {
		t.Fatalf("Artifact delta missing: %+v", received.Actions)
	}
	if len(rc.StateDelta) != 0 || len(rc.Artifacts) != 0 {
		t.Fatal("StateDelta & Artifacts should clear after emit")
	}
}

func TestRunContext_EmitEventStampsBranch(t *testing.T) {
	rc, emitCh := newRunContextForTest()
	branched := rc.WithBranch("Root.Child")
	if err := branched.EmitEvent(NewEvent(rc.RunID, "agent1")); err != nil {
		t.Fatalf("EmitEvent error: %v", err)
	}
	received := <-emitCh
	if received.Branch == nil || *received.Branch != "Root.Child" {
		t.Fatalf("event should carry the branch label, got %v", received.Branch)
	}

	preset := "custom"
	ev := NewEvent(rc.RunID, "agent1")
	ev.Branch = &preset
	if err := branched.EmitEvent(ev); err != nil {
		t.Fatalf("EmitEvent error: %v", err)
	}
	received = <-emitCh
	if *received.Branch != "custom" {
		t.Fatalf("preset branch should be preserved, got %s", *received.Branch)
	}
}

func TestRunContext_CommitStateDelta(t *testing.T) {
	rc, _ := newRunContextForTest()
	store := rc.SessionStore.(*mockSessionStore)
	rc.SetState("k1", 123)
	if err := rc.CommitStateDelta(); err != nil {
		t.Fatalf("CommitStateDelta error: %v", err)
	}
	if store.applied == nil || store.applied[rc.SessionID]["k1"].(int) != 123 {
		t.Fatalf("State delta not applied: %+v", store.applied)
	}
	if len(rc.StateDelta) != 0 {
		t.Error("StateDelta should be cleared after commit")
	}
}

func TestRunContext_StagedStateShadowsSession(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.Session.SetState("k", "persisted")
	rc.SetState("k", "staged")
	if v, _ := rc.GetState("k"); v.(string) != "staged" {
		t.Fatalf("staged value should shadow session value, got %v", v)
	}
}

func TestRunContext_CloneIsolation(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.SetState("a", 1)
	rc.AddArtifact("f1")
	clone := rc.Clone()
	if clone.Session != rc.Session {
		t.Error("Session pointer should be shared")
	}
	clone.SetState("b", 2)
	if _, exists := rc.StateDelta["b"]; exists {
		t.Error("Original should not have clone's new state")
	}
	if v, _ := clone.GetState("a"); v.(int) != 1 {
		t.Error("Clone missing original state")
	}
}

func TestRunContext_WithBranch(t *testing.T) {
	rc, _ := newRunContextForTest()
	branched := rc.WithBranch("Root.Child")
	if branched.Branch != "Root.Child" {
		t.Errorf("Expected branch Root.Child, got %s", branched.Branch)
	}
	if rc.Branch != "" {
		t.Error("Original branch should remain empty")
	}
}

func TestRunContext_NewChildContextFreshBuffers(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.SetState("a", 1)

	childEmit := make(chan Event, 1)
	childResume := make(chan struct{}, 1)
	child := rc.NewChildContext(childEmit, childResume, "Root.Child")

	if len(child.StateDelta) != 0 {
		t.Error("child should start with empty delta buffer")
	}
	if child.Branch != "Root.Child" {
		t.Errorf("unexpected child branch: %s", child.Branch)
	}
	if child.Limiter != rc.Limiter {
		t.Error("child should share the parent limiter")
	}

	inherit := rc.WithBranch("Root").NewChildContext(childEmit, childResume, "")
	if inherit.Branch != "Root" {
		t.Errorf("empty branch should inherit parent label, got %s", inherit.Branch)
	}
}
