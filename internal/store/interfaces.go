package store

import (
	"context"
	"net/url"

	"github.com/calref/curator/internal/labelbase"
	"github.com/calref/curator/internal/nav"
)

// Caller is the single outbound funnel every remote call goes through. The
// AppStore implements it; ListStores and the views collaborator depend on it
// rather than on the transport directly so that error bookkeeping stays in
// one place.
type Caller interface {
	APICall(ctx context.Context, method string, params url.Values, body any) labelbase.Result
}

// ViewSource supplies the currently selected view descriptor a fetch should
// resolve against.
type ViewSource interface {
	Selected() (labelbase.Tab, bool)
}

// Views is the full surface the orchestrator needs from the views/tabs
// collaborator: the selected descriptor plus per-view ordering, filters,
// selection snapshot, and the advisory lock used during remote actions.
type Views interface {
	ViewSource
	Fetch(ctx context.Context) error
	First() (labelbase.Tab, bool)
	Ordering(viewID int64) []string
	Filters(viewID int64) *labelbase.Filters
	Selection(viewID int64) labelbase.Selection
	ClearSelection(viewID int64)
	Lock(viewID int64)
	Unlock(viewID int64)
	Locked(viewID int64) bool
}

// Navigator receives navigation state changes and answers the current
// parameters. It is notify-only from the core's point of view.
type Navigator interface {
	Navigate(state nav.State)
	ForceNavigate(state nav.State)
	Params() nav.State
}

// ActionFunc handles an action locally, bypassing the remote path.
type ActionFunc func(ctx context.Context, params ActionParams, view labelbase.Tab)

// Host is the external rendering host: the labeling surface the orchestrator
// hands loaded records to and notifies about lifecycle events.
type Host interface {
	// Invoke delivers a named event with an optional payload.
	Invoke(event string, payload any)
	// SetMode tells the host which top-level mode is active.
	SetMode(mode Mode)
	// DestroyEditor tears down the host's active labeling session.
	DestroyEditor()
	// LocalAction returns a local handler for the action id, if one is
	// registered.
	LocalAction(id string) (ActionFunc, bool)
	// Reload asks the host to rebuild the whole application view.
	Reload()
}

// TaskSelection is the payload handed to the host when a record is ready
// for labeling.
type TaskSelection struct {
	Item         *Item
	AnnotationID int64
}
