package tether

import "github.com/zoobzio/capitan"

// Cell lifecycle signals.
var (
	// CellCreated is emitted when a Cell resolves its initial value.
	CellCreated = capitan.NewSignal(
		"tether.cell.created",
		"Cell created with resolved initial value",
	)

	// CellWatchStarted is emitted when a Cell subscribes to its store's
	// external-change feed (first view attached).
	CellWatchStarted = capitan.NewSignal(
		"tether.cell.watch.started",
		"External-change subscription activated",
	)

	// CellWatchStopped is emitted when a Cell cancels its external-change
	// subscription (last view closed).
	CellWatchStopped = capitan.NewSignal(
		"tether.cell.watch.stopped",
		"External-change subscription deactivated",
	)
)

// Update and propagation signals.
var (
	// CellUpdated is emitted after a local update has been applied and
	// fanned out to all views.
	CellUpdated = capitan.NewSignal(
		"tether.cell.updated",
		"Local update applied",
	)

	// CellPersistFailed is emitted when writing the updated value to the
	// store fails. The in-memory value has already changed.
	CellPersistFailed = capitan.NewSignal(
		"tether.cell.persist.failed",
		"Store write failed after update",
	)

	// CellExternalApplied is emitted when an external change overwrote the
	// cell and was fanned out to views.
	CellExternalApplied = capitan.NewSignal(
		"tether.cell.external.applied",
		"External change applied",
	)

	// CellExternalIgnored is emitted when an external change was discarded.
	// KeyReason carries why: mismatched store or key, deleted entry, or
	// undecodable payload.
	CellExternalIgnored = capitan.NewSignal(
		"tether.cell.external.ignored",
		"External change ignored",
	)

	// CellDecodeFailed is emitted when a stored or externally notified
	// value could not be decoded. The cell falls back to its current value.
	CellDecodeFailed = capitan.NewSignal(
		"tether.cell.decode.failed",
		"Stored value could not be decoded",
	)
)

// View signals.
var (
	// ViewAttached is emitted when a view attaches to a Cell.
	ViewAttached = capitan.NewSignal(
		"tether.view.attached",
		"View attached",
	)

	// ViewDetached is emitted when a view closes.
	ViewDetached = capitan.NewSignal(
		"tether.view.detached",
		"View detached",
	)
)
