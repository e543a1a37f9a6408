// Package tether provides a single shared, observable value that multiple
// independent consumers can read, update, and subscribe to with automatic
// convergence, in one process or across sibling processes mirroring the
// value through a durable key/value store.
//
// The core type is Cell, which owns the authoritative in-memory copy of the
// value, fans out changes to attached consumers, and optionally mirrors the
// value under a single key in a Store:
//
//	Update → Cell → Listeners
//	              ↘ Store (persist)
//	External change → Store → Cell → Listeners (no re-persist)
//
// # Cells
//
// A Cell holds exactly one logical value. Construction resolves the initial
// value: a decodable entry already present in the store wins; otherwise the
// supplied default is used and, when mirrored, written to the store.
//
//	cell, err := tether.New(Settings{Theme: "dark"},
//	    tether.WithStore[Settings](store),
//	    tether.WithKey[Settings]("settings"),
//	)
//
// Updates take a literal value or a function of the previous value:
//
//	cell.Set(Settings{Theme: "light"})
//	cell.Update(func(s Settings) Settings { s.Theme = "light"; return s })
//
// # Views
//
// Consumers attach through a View, which observes either the raw value or a
// projection of it. Each view applies its own projection at notification
// time, so two views over the same cell can derive different shapes from
// one update:
//
//	theme := tether.Observe(cell, func(s Settings) string { return s.Theme })
//	defer theme.Close()
//	fmt.Println(theme.Value())
//
// The projection is late-bound: Reproject swaps it without detaching, so a
// render loop can pass a fresh closure on every pass while the attachment
// keeps its identity and registration order.
//
// # Stores
//
// The Store interface abstracts the durable mirror. The core package
// provides MemoryStore (with sibling handles modeling separate execution
// contexts over shared data) and FileStore (fsnotify). Additional backends
// live in pkg/:
//
//   - pkg/redis: Redis keyspace notifications
//   - pkg/consul: Consul blocking queries
//   - pkg/etcd: etcd Watch API
//   - pkg/nats: NATS JetStream KV
//
// A change arriving from outside the process overwrites the cell and
// notifies views without writing back to the store, so two cells mirroring
// the same key converge instead of ping-ponging writes.
//
// # Example
//
//	store := tether.NewMemoryStore()
//
//	cell, err := tether.New(0,
//	    tether.WithStore[int](store),
//	    tether.WithKey[int]("counter"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	view := cell.Attach()
//	defer view.Close()
//
//	cell.Update(func(n int) int { return n + 1 })
//	fmt.Println(view.Value()) // 1
package tether
