package tether

import "github.com/zoobzio/capitan"

// Field keys for Cell events.
var (
	// KeyKey is the store key the Cell mirrors its value under.
	KeyKey = capitan.NewStringKey("key")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyReason is why an external change was ignored.
	KeyReason = capitan.NewStringKey("reason")

	// KeyOldState is the previous subscription state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new subscription state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyViews is the number of attached views after an attach or detach.
	KeyViews = capitan.NewIntKey("views")

	// KeyContentType is the codec content type of the persisted value.
	KeyContentType = capitan.NewStringKey("content_type")
)

// Reasons carried by KeyReason on CellExternalIgnored.
const (
	// ReasonStoreMismatch marks a change belonging to an unrelated store.
	ReasonStoreMismatch = "store_mismatch"

	// ReasonKeyMismatch marks a change for a different key on this store.
	ReasonKeyMismatch = "key_mismatch"

	// ReasonDeleted marks a change whose entry was removed.
	ReasonDeleted = "deleted"

	// ReasonDecodeFailed marks a change whose payload did not decode.
	ReasonDecodeFailed = "decode_failed"
)
