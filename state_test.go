package tether

import "testing"

func TestState_String_Idle(t *testing.T) {
	if s := StateIdle.String(); s != "idle" {
		t.Errorf("expected 'idle', got %q", s)
	}
}

func TestState_String_Watching(t *testing.T) {
	if s := StateWatching.String(); s != "watching" {
		t.Errorf("expected 'watching', got %q", s)
	}
}

func TestState_String_Unknown(t *testing.T) {
	unknown := State(999)
	if s := unknown.String(); s != "unknown" {
		t.Errorf("expected 'unknown', got %q", s)
	}
}

func TestState_Values(t *testing.T) {
	// Verify iota ordering
	if StateIdle != 0 {
		t.Errorf("expected StateIdle=0, got %d", StateIdle)
	}
	if StateWatching != 1 {
		t.Errorf("expected StateWatching=1, got %d", StateWatching)
	}
}
