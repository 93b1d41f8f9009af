// Package nav keeps an in-memory navigation history for the application.
// It is the terminal-client analogue of browser history: the orchestrator
// pushes state transitions into it and a pop handler fires when the user
// navigates back.
package nav

import "sync"

// State is one navigation entry. Zero fields mean "not part of this state".
type State struct {
	TabID        int64
	TaskID       int64
	AnnotationID int64
	Labeling     bool
}

// PopHandler is invoked with the state that becomes current after a Back.
type PopHandler func(State)

// History is a simple push/replace/pop stack. Safe for concurrent use.
type History struct {
	mu    sync.Mutex
	stack []State
	onPop PopHandler
}

// SetPopHandler registers the callback fired on Back navigation.
func (h *History) SetPopHandler(fn PopHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPop = fn
}

// Navigate pushes a new state. Pushing a state equal to the current one is
// a no-op to keep Back meaningful.
func (h *History) Navigate(state State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.stack); n > 0 && h.stack[n-1] == state {
		return
	}
	h.stack = append(h.stack, state)
}

// ForceNavigate replaces the current state instead of pushing.
func (h *History) ForceNavigate(state State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		h.stack = append(h.stack, state)
		return
	}
	h.stack[len(h.stack)-1] = state
}

// Params returns the current state, or the zero State when nothing has been
// pushed yet.
func (h *History) Params() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return State{}
	}
	return h.stack[len(h.stack)-1]
}

// Back pops the current state and fires the pop handler with the state that
// becomes current. Popping the last (or empty) stack is a no-op.
func (h *History) Back() {
	h.mu.Lock()
	if len(h.stack) < 2 {
		h.mu.Unlock()
		return
	}
	h.stack = h.stack[:len(h.stack)-1]
	current := h.stack[len(h.stack)-1]
	fn := h.onPop
	h.mu.Unlock()

	if fn != nil {
		fn(current)
	}
}

// Depth reports how many states are on the stack.
func (h *History) Depth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}
