package tether

// State represents the external-change subscription state of a Cell.
type State int32

const (
	// StateIdle indicates the Cell is not listening for external changes.
	// Cells without a configured store stay idle for their whole lifetime;
	// mirrored cells are idle whenever no view is attached.
	StateIdle State = iota

	// StateWatching indicates the Cell holds an active subscription to its
	// store's external-change feed. Entered when the first view attaches,
	// left when the last view closes; re-entrant over the Cell's lifetime.
	StateWatching
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	default:
		return "unknown"
	}
}
