package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/calref/curator/internal/store"
)

// HostEventMsg carries one orchestrator event into the Bubble Tea loop.
type HostEventMsg struct {
	Event   string
	Payload any
}

// ModeChangedMsg reports a mode transition.
type ModeChangedMsg struct {
	Mode store.Mode
}

// EditorClosedMsg reports that the labeling session was torn down.
type EditorClosedMsg struct{}

// ReloadRequestedMsg asks the UI to rebuild everything from the stores.
type ReloadRequestedMsg struct{}

// Host adapts the orchestrator's rendering-host contract onto Bubble Tea
// messages. Events arriving before the program is attached are buffered and
// flushed on attach.
type Host struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending []tea.Msg
	actions map[string]store.ActionFunc
}

// Ensure Host implements the orchestrator's contract at compile time.
var _ store.Host = (*Host)(nil)

// NewHost builds an unattached host.
func NewHost() *Host {
	return &Host{actions: make(map[string]store.ActionFunc)}
}

// Attach binds the running program's send function and flushes buffered
// events.
func (h *Host) Attach(send func(tea.Msg)) {
	h.mu.Lock()
	h.send = send
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, msg := range pending {
		send(msg)
	}
}

// RegisterLocalAction installs a local handler for the action id.
func (h *Host) RegisterLocalAction(id string, fn store.ActionFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions[id] = fn
}

// Invoke implements store.Host.
func (h *Host) Invoke(event string, payload any) {
	h.deliver(HostEventMsg{Event: event, Payload: payload})
}

// SetMode implements store.Host.
func (h *Host) SetMode(mode store.Mode) {
	h.deliver(ModeChangedMsg{Mode: mode})
}

// DestroyEditor implements store.Host.
func (h *Host) DestroyEditor() {
	h.deliver(EditorClosedMsg{})
}

// LocalAction implements store.Host.
func (h *Host) LocalAction(id string) (store.ActionFunc, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn, ok := h.actions[id]
	return fn, ok
}

// Reload implements store.Host.
func (h *Host) Reload() {
	h.deliver(ReloadRequestedMsg{})
}

func (h *Host) deliver(msg tea.Msg) {
	h.mu.Lock()
	send := h.send
	if send == nil {
		h.pending = append(h.pending, msg)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	send(msg)
}
