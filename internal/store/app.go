package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/calref/curator/internal/labelbase"
	"github.com/calref/curator/internal/prefs"
)

// CallHook can rewrite the parameters and body of one API method before
// dispatch. Hooks are supplied by the embedding application.
type CallHook func(params url.Values, body any) (url.Values, any)

// AppStore is the orchestrator: it owns the application mode, the two list
// stores, project metadata, the per-endpoint error map, and the single
// funnel every outbound call passes through.
type AppStore struct {
	mu sync.Mutex

	transport labelbase.Transport
	views     Views
	navi      Navigator
	host      Host
	prefs     *prefs.Store

	mode Mode

	project    labelbase.Project
	hasProject bool
	users      []labelbase.User
	actions    []labelbase.Action

	serverError map[string]json.RawMessage
	interfaces  map[string]bool
	crashed     bool

	stores [targetCount]*ListStore

	hooks map[string]CallHook

	pollEvery    time.Duration
	pollDisabled bool
	polling      bool
	pollTimer    *time.Timer

	listeners listenerList
}

// Options configure an AppStore.
type Options struct {
	Transport labelbase.Transport
	Views     Views
	Navigator Navigator
	Host      Host
	Prefs     *prefs.Store
	// PollEvery is the project-refresh cadence. Zero uses the default.
	PollEvery time.Duration
	// DisablePolling turns the background refresh off entirely.
	DisablePolling bool
}

const defaultPollEvery = 10 * time.Second

// Feature-interface flags the rendering layer may consult. Setting a flag
// outside this set is rejected with a warning.
var knownInterfaces = map[string]bool{
	"import":         true,
	"export":         true,
	"labelButton":    true,
	"groundTruth":    false,
	"autoAnnotation": false,
	"backButton":     true,
}

// New builds the orchestrator and its two list stores.
func New(opts Options) *AppStore {
	a := &AppStore{
		transport:    opts.Transport,
		views:        opts.Views,
		navi:         opts.Navigator,
		host:         opts.Host,
		prefs:        opts.Prefs,
		mode:         ModeExplorer,
		serverError:  make(map[string]json.RawMessage),
		interfaces:   make(map[string]bool, len(knownInterfaces)),
		hooks:        make(map[string]CallHook),
		pollEvery:    opts.PollEvery,
		pollDisabled: opts.DisablePolling,
	}
	if a.pollEvery <= 0 {
		a.pollEvery = defaultPollEvery
	}
	for name, enabled := range knownInterfaces {
		a.interfaces[name] = enabled
	}
	for t := Target(0); t < targetCount; t++ {
		a.stores[t] = NewListStore(ListStoreOptions{
			Target: t,
			Caller: a,
			Views:  opts.Views,
			Prefs:  opts.Prefs,
		})
		a.stores[t].Subscribe(a.forward)
	}
	return a
}

// forward re-emits list store events on the orchestrator's listener list and
// relays them to the host.
func (a *AppStore) forward(ev Event) {
	switch ev.Kind {
	case EventKindDataFetched:
		a.hostInvoke(EventDataFetched, ev.Target.String())
	case EventKindSelectionChanged:
		a.hostInvoke(EventTaskSelected, nil)
	}
	a.listeners.emit(ev)
}

// Subscribe registers an observer for orchestrator events.
func (a *AppStore) Subscribe(fn func(Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners.add(fn)
}

// SetCallHook installs a parameter/body transform for one API method.
func (a *AppStore) SetCallHook(method string, hook CallHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if hook == nil {
		delete(a.hooks, method)
		return
	}
	a.hooks[method] = hook
}

// APICall is the single choke point for every outbound call. It applies the
// method's transform hook, records error payloads per endpoint, clears them
// again on success or a tolerated not-found, and returns the raw result
// unconditionally. It never raises.
func (a *AppStore) APICall(ctx context.Context, method string, params url.Values, body any) labelbase.Result {
	a.mu.Lock()
	hook := a.hooks[method]
	transport := a.transport
	a.mu.Unlock()

	if hook != nil {
		params, body = hook(params, body)
	}
	if transport == nil {
		return labelbase.Result{Err: fmt.Errorf("no transport configured")}
	}

	res := transport.Call(ctx, method, params, body)

	if res.Err != nil && !res.NotFound() {
		if len(res.Response) > 0 {
			a.mu.Lock()
			a.serverError[method] = res.Response
			a.mu.Unlock()
		}
		log.Printf("api %s failed: %v", method, res.Err)
		a.hostInvoke(EventError, res)
		a.listeners.emit(Event{Kind: EventKindErrorRecorded, Method: method})
	} else {
		a.mu.Lock()
		delete(a.serverError, method)
		a.mu.Unlock()
	}
	return res
}

// FetchInitial loads project, users, actions, and view descriptors
// concurrently and joins them. A failing project load is fatal and crashes
// the store; the other routines handle their failures locally.
func (a *AppStore) FetchInitial(ctx context.Context) error {
	var wg sync.WaitGroup
	var projectErr error

	wg.Add(4)
	go func() {
		defer wg.Done()
		projectErr = a.FetchProject(ctx, "")
	}()
	go func() {
		defer wg.Done()
		if err := a.FetchUsers(ctx); err != nil {
			log.Printf("fetch users: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := a.FetchActions(ctx); err != nil {
			log.Printf("fetch actions: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := a.views.Fetch(ctx); err != nil {
			log.Printf("fetch views: %v", err)
		}
	}()
	wg.Wait()

	if projectErr != nil {
		a.Crash()
		return fmt.Errorf("fetch project: %w", projectErr)
	}
	return nil
}

// FetchProject refreshes project metadata. The interaction tag marks
// background refreshes for analytics context.
func (a *AppStore) FetchProject(ctx context.Context, interaction string) error {
	params := url.Values{}
	if interaction != "" {
		params.Set("interaction", interaction)
	}
	res := a.APICall(ctx, "project", params, nil)
	if res.Err != nil {
		if res.NotFound() {
			return nil
		}
		return res.Err
	}
	var project labelbase.Project
	if err := res.Decode(&project); err != nil {
		return err
	}
	a.mu.Lock()
	a.project = project
	a.hasProject = true
	a.mu.Unlock()
	return nil
}

// FetchUsers refreshes the project member list.
func (a *AppStore) FetchUsers(ctx context.Context) error {
	res := a.APICall(ctx, "users", nil, nil)
	if res.Err != nil {
		if res.NotFound() {
			return nil
		}
		return res.Err
	}
	var users []labelbase.User
	if err := res.Decode(&users); err != nil {
		return err
	}
	a.mu.Lock()
	a.users = users
	a.mu.Unlock()
	return nil
}

// FetchActions refreshes the available action descriptors.
func (a *AppStore) FetchActions(ctx context.Context) error {
	res := a.APICall(ctx, "actions", nil, nil)
	if res.Err != nil {
		if res.NotFound() {
			return nil
		}
		return res.Err
	}
	var actions []labelbase.Action
	if err := res.Decode(&actions); err != nil {
		return err
	}
	a.mu.Lock()
	a.actions = actions
	a.mu.Unlock()
	return nil
}

// TaskStore returns the tasks list store, nil after a crash.
func (a *AppStore) TaskStore() *ListStore {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stores[TargetTasks]
}

// AnnotationStore returns the annotations list store, nil after a crash.
func (a *AppStore) AnnotationStore() *ListStore {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stores[TargetAnnotations]
}

// DataStore returns the list store the currently selected view targets.
// With no view selected it falls back to the tasks store.
func (a *AppStore) DataStore() *ListStore {
	target := TargetTasks
	if view, ok := a.views.Selected(); ok {
		target = TargetFromString(view.Target)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stores[target]
}

// Project returns the current project metadata snapshot.
func (a *AppStore) Project() (labelbase.Project, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.project, a.hasProject
}

// Users returns the fetched project members.
func (a *AppStore) Users() []labelbase.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]labelbase.User(nil), a.users...)
}

// AvailableActions returns the fetched action descriptors.
func (a *AppStore) AvailableActions() []labelbase.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]labelbase.Action(nil), a.actions...)
}

// ServerError returns the recorded error payload for the method, if any.
func (a *AppStore) ServerError(method string) (json.RawMessage, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	payload, ok := a.serverError[method]
	return payload, ok
}

// ServerErrors returns a copy of the whole endpoint-error map.
func (a *AppStore) ServerErrors() map[string]json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	dup := make(map[string]json.RawMessage, len(a.serverError))
	for k, v := range a.serverError {
		dup[k] = v
	}
	return dup
}

// Interface reports whether the named feature flag is enabled. Unknown
// names read as disabled.
func (a *AppStore) Interface(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interfaces[name]
}

// SetInterface updates a feature flag. Unknown names are rejected with a
// warning and existing values are kept.
func (a *AppStore) SetInterface(name string, enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := knownInterfaces[name]; !ok {
		log.Printf("unknown interface flag %q ignored", name)
		return
	}
	a.interfaces[name] = enabled
}

// Crashed reports whether the store has terminally crashed.
func (a *AppStore) Crashed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.crashed
}

// Crash tears down both data stores, stops polling, and marks the store
// terminally crashed. There is no transition back out.
func (a *AppStore) Crash() {
	a.mu.Lock()
	if a.crashed {
		a.mu.Unlock()
		return
	}
	stores := a.stores
	a.stores = [targetCount]*ListStore{}
	a.stopPollLocked()
	a.crashed = true
	a.mu.Unlock()

	for _, s := range stores {
		if s != nil {
			s.Clear()
		}
	}
	a.hostInvoke(EventCrash, nil)
	a.listeners.emit(Event{Kind: EventKindCrashed})
}

// Destroy stops background work without marking the store crashed. Used on
// normal teardown.
func (a *AppStore) Destroy() {
	a.mu.Lock()
	a.stopPollLocked()
	a.mu.Unlock()
}

func (a *AppStore) hostInvoke(event string, payload any) {
	a.mu.Lock()
	host := a.host
	a.mu.Unlock()
	if host != nil {
		host.Invoke(event, payload)
	}
}

func (a *AppStore) hostDo(fn func(Host)) {
	a.mu.Lock()
	host := a.host
	a.mu.Unlock()
	if host != nil {
		fn(host)
	}
}
