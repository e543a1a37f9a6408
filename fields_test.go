package tether

import "testing"

func TestKeyKey(t *testing.T) {
	field := KeyKey.Field("settings")
	if field.Key().Name() != "key" {
		t.Errorf("expected key 'key', got %q", field.Key().Name())
	}
}

func TestKeyError(t *testing.T) {
	field := KeyError.Field("something went wrong")
	if field.Key().Name() != "error" {
		t.Errorf("expected key 'error', got %q", field.Key().Name())
	}
}

func TestKeyReason(t *testing.T) {
	field := KeyReason.Field(ReasonKeyMismatch)
	if field.Key().Name() != "reason" {
		t.Errorf("expected key 'reason', got %q", field.Key().Name())
	}
}

func TestKeyOldState(t *testing.T) {
	field := KeyOldState.Field("idle")
	if field.Key().Name() != "old_state" {
		t.Errorf("expected key 'old_state', got %q", field.Key().Name())
	}
}

func TestKeyNewState(t *testing.T) {
	field := KeyNewState.Field("watching")
	if field.Key().Name() != "new_state" {
		t.Errorf("expected key 'new_state', got %q", field.Key().Name())
	}
}

func TestKeyViews(t *testing.T) {
	field := KeyViews.Field(2)
	if field.Key().Name() != "views" {
		t.Errorf("expected key 'views', got %q", field.Key().Name())
	}
}

func TestKeyContentType(t *testing.T) {
	field := KeyContentType.Field("application/json")
	if field.Key().Name() != "content_type" {
		t.Errorf("expected key 'content_type', got %q", field.Key().Name())
	}
}
