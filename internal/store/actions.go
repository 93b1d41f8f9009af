package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/calref/curator/internal/labelbase"
	"github.com/calref/curator/internal/prefs"
)

// ActionNextTask is the action id that advances the label stream to the
// next record. Its parameter bundle is reduced according to the persisted
// stream-mode preference.
const ActionNextTask = "next_task"

// ActionParams is the context bundle an action runs against: the view's
// ordering, its row selection snapshot, and its serialized filters. Nil
// fields are omitted on the wire.
type ActionParams struct {
	Ordering      []string             `json:"ordering,omitempty"`
	SelectedItems *labelbase.Selection `json:"selectedItems,omitempty"`
	Filters       *labelbase.Filters   `json:"filters,omitempty"`
}

// InvokeOptions tune one action invocation.
type InvokeOptions struct {
	// Body is merged into the outbound parameter bundle.
	Body map[string]any
	// SuppressReload skips the post-invocation refresh of view, project,
	// and selection.
	SuppressReload bool
}

// InvokeAction routes a named operation either to a local handler supplied
// by the host or to the remote action endpoint. Remote invocations lock the
// view for their duration; local ones do not.
func (a *AppStore) InvokeAction(ctx context.Context, actionID string, opts InvokeOptions) error {
	view, ok := a.views.Selected()
	if !ok {
		return fmt.Errorf("no active view for action %q", actionID)
	}

	params := a.actionParams(view.ID, actionID)

	var local ActionFunc
	a.hostDo(func(h Host) {
		if fn, found := h.LocalAction(actionID); found {
			local = fn
		}
	})
	if local != nil {
		local(ctx, params, view)
		return nil
	}

	registered := a.actionRegistered(actionID)
	if registered {
		a.views.Lock(view.ID)
	}

	body := paramsToBody(params)
	for k, v := range opts.Body {
		body[k] = v
	}

	callParams := url.Values{}
	callParams.Set("id", actionID)
	callParams.Set("tabID", strconv.FormatInt(view.ID, 10))

	res := a.APICall(ctx, "invokeAction", callParams, body)
	if res.Err != nil {
		if registered {
			a.views.Unlock(view.ID)
		}
		return res.Err
	}

	var out labelbase.ActionResponse
	if len(res.Data) > 0 {
		_ = json.Unmarshal(res.Data, &out)
	}
	if out.Reload {
		a.hostDo(func(h Host) { h.Reload() })
		return nil
	}

	if !opts.SuppressReload {
		if ds := a.DataStore(); ds != nil {
			_ = ds.Reload(ctx, FetchOptions{Interaction: actionID})
		}
		if err := a.FetchProject(ctx, ""); err != nil {
			return err
		}
		a.views.ClearSelection(view.ID)
		a.views.Unlock(view.ID)
	}
	return nil
}

// actionParams builds the bundle for one invocation, applying the
// stream-mode reductions for the next-record action.
func (a *AppStore) actionParams(viewID int64, actionID string) ActionParams {
	selection := a.views.Selection(viewID)
	params := ActionParams{
		Ordering:      a.views.Ordering(viewID),
		SelectedItems: &selection,
		Filters:       a.views.Filters(viewID),
	}

	if actionID != ActionNextTask {
		return params
	}

	mode := prefs.StreamFiltered
	if a.prefs != nil {
		mode = a.prefs.StreamMode()
	}
	switch mode {
	case prefs.StreamAll:
		params.Filters = nil
		if selection.Empty() {
			params.SelectedItems = nil
			params.Ordering = nil
		}
	default:
		params.SelectedItems = nil
	}
	return params
}

func (a *AppStore) actionRegistered(actionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, action := range a.actions {
		if action.ID == actionID {
			return true
		}
	}
	return false
}

// paramsToBody flattens the bundle into a request body map so callers can
// merge extra fields into it.
func paramsToBody(params ActionParams) map[string]any {
	body := make(map[string]any, 3)
	if params.Ordering != nil {
		body["ordering"] = params.Ordering
	}
	if params.SelectedItems != nil {
		body["selectedItems"] = params.SelectedItems
	}
	if params.Filters != nil {
		body["filters"] = params.Filters
	}
	return body
}
