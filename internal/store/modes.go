package store

import (
	"context"

	"github.com/calref/curator/internal/nav"
)

// Mode is the application's top-level interaction state. Exactly one is
// active at a time.
type Mode int

const (
	// ModeExplorer browses a collection.
	ModeExplorer Mode = iota
	// ModeLabelStream annotates records sequentially with no manual
	// navigation.
	ModeLabelStream
	// ModeLabeling edits one specific selected record.
	ModeLabeling
)

// String returns the mode's display name.
func (m Mode) String() string {
	switch m {
	case ModeLabelStream:
		return "labelstream"
	case ModeLabeling:
		return "labeling"
	default:
		return "explorer"
	}
}

// Mode returns the active mode.
func (a *AppStore) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *AppStore) setMode(m Mode) {
	a.mu.Lock()
	if a.mode == m {
		a.mu.Unlock()
		return
	}
	a.mode = m
	a.mu.Unlock()

	a.hostDo(func(h Host) { h.SetMode(m) })
	a.listeners.emit(Event{Kind: EventKindModeChanged})
}

// labelingConfigured is the precondition on project metadata for entering
// any labeling mode.
func (a *AppStore) labelingConfigured() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasProject && a.project.Configured()
}

// guardLabeling checks the labeling precondition, prompting the host toward
// project setup when it fails.
func (a *AppStore) guardLabeling() bool {
	if a.labelingConfigured() {
		return true
	}
	a.hostInvoke(EventSettingsClicked, nil)
	return false
}

// StartLabelStream enters sequential annotation mode. The transition is
// aborted when the project is not configured for labeling.
func (a *AppStore) StartLabelStream(ctx context.Context) {
	if !a.guardLabeling() {
		return
	}
	a.setMode(ModeLabelStream)

	state := a.navi.Params()
	state.Labeling = true
	state.TaskID = 0
	state.AnnotationID = 0
	a.navi.Navigate(state)

	if _, err := a.SetTask(ctx, SetTaskOptions{Next: true, SuppressState: true}); err != nil {
		a.hostInvoke(EventError, err)
	}
}

// StartLabeling opens one record for editing. Invoked on the record that is
// already the active selection it acts as a toggle and leaves labeling
// instead. Refused while a single-record load is in flight.
func (a *AppStore) StartLabeling(ctx context.Context, item *Item) {
	if item == nil {
		return
	}
	if !a.guardLabeling() {
		return
	}
	ds := a.DataStore()
	if ds == nil || ds.ItemLoadInFlight() {
		return
	}
	if ds.SelectedID() == item.ID {
		a.CloseLabeling(ctx)
		return
	}

	// A record carrying a task_id is an annotation of that task.
	taskID := item.ID
	var annotationID int64
	if tid, ok := item.Int64Field("task_id"); ok && tid > 0 {
		taskID = tid
		annotationID = item.ID
	}

	a.setMode(ModeLabeling)
	if _, err := a.SetTask(ctx, SetTaskOptions{TaskID: taskID, AnnotationID: annotationID}); err != nil {
		a.hostInvoke(EventError, err)
	}
}

// CloseLabelingOptions tune the exit transition.
type CloseLabelingOptions struct {
	// SuppressState skips the navigation push.
	SuppressState bool
}

// CloseLabeling leaves any labeling mode back to the explorer, resolving a
// tab to land on and tearing down the host's editor session.
func (a *AppStore) CloseLabeling(ctx context.Context, opts ...CloseLabelingOptions) {
	var o CloseLabelingOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	a.UnsetTask(ctx)

	if !o.SuppressState {
		tabID := a.resolveTab()
		a.navi.Navigate(nav.State{TabID: tabID})
	}

	a.setMode(ModeExplorer)
	a.hostDo(func(h Host) { h.DestroyEditor() })
}

// resolveTab picks the tab to return to: the current view, then the
// navigation parameters, then the first available view.
func (a *AppStore) resolveTab() int64 {
	if view, ok := a.views.Selected(); ok {
		return view.ID
	}
	if params := a.navi.Params(); params.TabID != 0 {
		return params.TabID
	}
	if first, ok := a.views.First(); ok {
		return first.ID
	}
	return 0
}

// SetTaskOptions identify which record to activate.
type SetTaskOptions struct {
	TaskID       int64
	AnnotationID int64
	// Next asks the active store for the stream's next record regardless of
	// TaskID. Implied by labelstream mode.
	Next bool
	// SuppressState skips the navigation push.
	SuppressState bool
}

// SetTask activates a record for labeling. A zero task id (without Next) is
// a valid no-op meaning nothing is loaded. In labelstream mode the active
// store advances to its next record; otherwise the task is loaded in full
// and handed to the host together with the current annotation id.
func (a *AppStore) SetTask(ctx context.Context, o SetTaskOptions) (*Item, error) {
	if !o.SuppressState {
		a.navi.Navigate(nav.State{
			TaskID:       o.TaskID,
			AnnotationID: o.AnnotationID,
			Labeling:     true,
		})
	}

	if o.TaskID == 0 && !o.Next {
		return nil, nil
	}

	if a.Mode() == ModeLabelStream || o.Next {
		ds := a.DataStore()
		if ds == nil {
			return nil, nil
		}
		item, err := ds.LoadNext(ctx)
		if err != nil {
			return nil, err
		}
		a.handToHost(item)
		return item, nil
	}

	if o.AnnotationID != 0 {
		if as := a.AnnotationStore(); as != nil {
			as.SetSelected(o.AnnotationID)
		}
	}

	ts := a.TaskStore()
	if ts == nil {
		return nil, nil
	}
	item, err := ts.LoadItem(ctx, o.TaskID)
	if err != nil {
		return nil, err
	}
	a.handToHost(item)
	return item, nil
}

func (a *AppStore) handToHost(item *Item) {
	var annotationID int64
	if as := a.AnnotationStore(); as != nil {
		annotationID = as.SelectedID()
	}
	a.hostInvoke(EventTaskSelected, TaskSelection{Item: item, AnnotationID: annotationID})
}

// UnsetTask clears the active record on both stores. The clear is best
// effort: partial cleanup is preferable to blocking navigation, so nothing
// here can fail outward.
func (a *AppStore) UnsetTask(ctx context.Context) {
	_ = ctx
	a.unset(false)
}

// UnsetSelection clears selections while keeping highlights.
func (a *AppStore) UnsetSelection() {
	a.unset(true)
}

func (a *AppStore) unset(keepHighlight bool) {
	if ts := a.TaskStore(); ts != nil {
		ts.Unselect(keepHighlight)
	}
	if as := a.AnnotationStore(); as != nil {
		as.Unselect(keepHighlight)
	}
}
