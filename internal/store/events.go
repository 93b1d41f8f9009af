package store

import "sync"

// Host event names delivered through Host.Invoke.
const (
	EventTaskSelected    = "taskSelected"
	EventDataFetched     = "dataFetched"
	EventError           = "error"
	EventCrash           = "crash"
	EventSettingsClicked = "settingsClicked"
)

// EventKind identifies an internal state-change notification.
type EventKind int

const (
	EventKindDataFetched EventKind = iota
	EventKindSelectionChanged
	EventKindModeChanged
	EventKindErrorRecorded
	EventKindCrashed
)

// Event is delivered to subscribed observers after the originating mutation
// has completed.
type Event struct {
	Kind   EventKind
	Target Target
	Method string
}

// listenerList is the minimal subscription mechanism standing in for the
// reactive framework the rendering layer would otherwise observe through.
// Listeners are invoked synchronously, outside every lock, so a late
// subscription may race an in-flight emit; the list carries its own lock to
// keep that safe.
type listenerList struct {
	mu  sync.Mutex
	fns []func(Event)
}

func (l *listenerList) add(fn func(Event)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *listenerList) emit(ev Event) {
	l.mu.Lock()
	fns := append(([]func(Event))(nil), l.fns...)
	l.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
