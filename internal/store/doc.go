// Package store holds the client-side state core of Curator: the paginated
// list caches and the orchestrator that drives them.
//
// # Overview
//
// Two tightly coupled pieces live here:
//
//   - ListStore: a paginated, cancelable, mergeable cache of records for one
//     target collection (tasks or annotations). It owns the pagination
//     cursor, per-record and bulk loading flags, and the selection/highlight
//     indirection.
//   - AppStore: the orchestrator. It owns the application mode, the two
//     ListStores, project metadata, the per-endpoint error map, the
//     feature-interface flags, action dispatch, polling, and the single
//     funnel every outbound call passes through.
//
// # Data Flow
//
//	UI input
//	  └─> AppStore action (select task, invoke action, ...)
//	        └─> ListStore fetch / direct APICall
//	              └─> labelbase.Transport
//	                    └─> response
//	                          └─> merge into ListStore / mutate AppStore
//	                                └─> observers notified (UI, host)
//
// # Stale-Response Rejection
//
// Multiple fetches on one ListStore may be in flight at once; there is no
// request queue. Each fetch mints a fresh request token and overwrites the
// store's current one. When a response returns, its token is compared to the
// current one under the lock: a superseded response is discarded without
// touching state. The token is the sole cancellation mechanism: the
// outbound call is not aborted, only its effect suppressed.
//
// # Merge Semantics
//
// Incoming pages are merged by record id. A record that already exists is
// removed first, so re-insertion reflects the new content and position and
// the list never holds two records with the same id. A reload replaces the
// list wholesale in server order; a page advance appends.
//
// # Selection Indirection
//
// Selection and highlight are tracked by id, not by object. When a merge
// drops the referenced record, the logical selection resolves to nil rather
// than failing; the highlight is additionally cleared when its record
// disappears from a fetched page.
//
// # Mode Machine
//
// Exactly one of explorer, labelstream, and labeling is active. Transitions
// into the labeling modes are guarded by the project's labeling
// configuration; StartLabeling on the already-selected record toggles back
// out. Crash() is terminal: both data stores are cleared and released,
// polling stops, and no later fetch mutates state.
//
// # Error Handling
//
// APICall never raises. Not-found results are tolerated and clear any prior
// error recorded for the method. Other error results are recorded in the
// per-endpoint serverError map, logged, and relayed to the host; the raw
// result is returned either way and callers branch on its shape. Cleanup
// paths (UnsetTask) are best effort and swallow failures.
package store
