package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/calref/curator/internal/labelbase"
	"github.com/calref/curator/internal/prefs"
)

type call struct {
	method string
	params url.Values
	body   any
}

// fakeCaller scripts funnel responses for list store tests.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []call
	handler func(method string, params url.Values, body any) labelbase.Result
}

func (f *fakeCaller) APICall(_ context.Context, method string, params url.Values, body any) labelbase.Result {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: method, params: params, body: body})
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return labelbase.Result{Data: json.RawMessage(`{"total":0,"tasks":[]}`)}
	}
	return handler(method, params, body)
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCaller) lastCall(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

// fakeViewSource supplies a fixed selected view.
type fakeViewSource struct {
	tab labelbase.Tab
	ok  bool
}

func (f fakeViewSource) Selected() (labelbase.Tab, bool) { return f.tab, f.ok }

func listPayload(t *testing.T, total int, records ...map[string]any) json.RawMessage {
	t.Helper()
	raws := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal record: %v", err)
		}
		raws = append(raws, raw)
	}
	payload, err := json.Marshal(map[string]any{"total": total, "tasks": raws})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

func rawRecords(t *testing.T, records ...map[string]any) []json.RawMessage {
	t.Helper()
	raws := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal record: %v", err)
		}
		raws = append(raws, raw)
	}
	return raws
}

func newTestListStore(t *testing.T, caller Caller, view fakeViewSource) *ListStore {
	t.Helper()
	p := prefs.Open(filepath.Join(t.TempDir(), "prefs.toml"))
	return NewListStore(ListStoreOptions{
		Target: TargetTasks,
		Caller: caller,
		Views:  view,
		Prefs:  p,
	})
}

func defaultView() fakeViewSource {
	return fakeViewSource{tab: labelbase.Tab{ID: 7, Target: "tasks"}, ok: true}
}

func ids(items []*Item) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestFetch_NoViewIsCompleteNoOp(t *testing.T) {
	caller := &fakeCaller{}
	s := newTestListStore(t, caller, fakeViewSource{ok: false})

	if err := s.Fetch(context.Background(), FetchOptions{}); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if caller.callCount() != 0 {
		t.Fatalf("expected no api call, got %d", caller.callCount())
	}
	if s.Page() != 0 || s.Loading() {
		t.Fatalf("no-op fetch mutated state: page=%d loading=%v", s.Page(), s.Loading())
	}
}

func TestFetch_StaleResponseIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var n int
	var mu sync.Mutex

	caller := &fakeCaller{}
	caller.handler = func(string, url.Values, any) labelbase.Result {
		mu.Lock()
		n++
		seq := n
		mu.Unlock()
		if seq == 1 {
			close(started)
			<-release
			return labelbase.Result{Data: listPayload(t, 1, map[string]any{"id": 1, "v": "stale"})}
		}
		return labelbase.Result{Data: listPayload(t, 1, map[string]any{"id": 2, "v": "fresh"})}
	}
	s := newTestListStore(t, caller, defaultView())

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background(), FetchOptions{Reload: true}) }()
	<-started

	// A second fetch supersedes the first while it is still in flight.
	if err := s.Fetch(context.Background(), FetchOptions{Reload: true}); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	got := ids(s.List())
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("list = %v, want [2] (stale response must not clobber newer data)", got)
	}
	if s.List()[0].StringField("v") != "fresh" {
		t.Fatalf("stale payload overwrote newer record")
	}
	if s.Loading() {
		t.Fatal("loading flag stuck after stale response")
	}
}

func TestFetch_PageAdvanceAndJump(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(string, url.Values, any) labelbase.Result {
		return labelbase.Result{Data: listPayload(t, 100)}
	}
	s := newTestListStore(t, caller, defaultView())
	ctx := context.Background()

	if err := s.Fetch(ctx, FetchOptions{}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.Page() != 1 {
		t.Fatalf("page = %d, want 1", s.Page())
	}
	if err := s.Fetch(ctx, FetchOptions{}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.Page() != 2 {
		t.Fatalf("page = %d, want 2 after advance", s.Page())
	}
	if err := s.Fetch(ctx, FetchOptions{Reload: true}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.Page() != 1 {
		t.Fatalf("page = %d, want 1 after reload", s.Page())
	}
	// An explicit page number wins over reload.
	if err := s.Fetch(ctx, FetchOptions{Reload: true, PageNumber: 5}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.Page() != 5 {
		t.Fatalf("page = %d, want 5 when page number given", s.Page())
	}
}

func TestFetch_ParamsCarryQueryOrViewNeverBoth(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(string, url.Values, any) labelbase.Result {
		return labelbase.Result{Data: listPayload(t, 0)}
	}

	// Non-virtual view: view id goes out, no query.
	s := newTestListStore(t, caller, defaultView())
	if err := s.Fetch(context.Background(), FetchOptions{Interaction: "scroll"}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got := caller.lastCall(t)
	if got.method != "tasks" {
		t.Fatalf("method = %q, want tasks", got.method)
	}
	if got.params.Get("view") != "7" || got.params.Has("query") {
		t.Fatalf("params = %v, want view=7 and no query", got.params)
	}
	if got.params.Get("interaction") != "scroll" {
		t.Fatalf("interaction tag missing: %v", got.params)
	}

	// Virtual view: its query goes out instead of the view id.
	virtual := fakeViewSource{tab: labelbase.Tab{ID: 9, Virtual: true, Query: "status=done"}, ok: true}
	s2 := newTestListStore(t, caller, virtual)
	if err := s2.Fetch(context.Background(), FetchOptions{}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got = caller.lastCall(t)
	if got.params.Get("query") != "status=done" || got.params.Has("view") {
		t.Fatalf("params = %v, want query only for virtual view", got.params)
	}
}

func TestFetch_PersistsPageSize(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(string, url.Values, any) labelbase.Result {
		return labelbase.Result{Data: listPayload(t, 0)}
	}
	path := filepath.Join(t.TempDir(), "prefs.toml")
	p := prefs.Open(path)
	s := NewListStore(ListStoreOptions{Target: TargetTasks, Caller: caller, Views: defaultView(), Prefs: p})

	if err := s.Fetch(context.Background(), FetchOptions{PageSize: 50}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := caller.lastCall(t).params.Get("page_size"); got != "50" {
		t.Fatalf("page_size param = %q, want 50", got)
	}
	if reloaded := prefs.Load(path); reloaded.PageSize != 50 {
		t.Fatalf("persisted page size = %d, want 50", reloaded.PageSize)
	}
}

func TestFetch_ClearsHighlightWhenRecordDisappears(t *testing.T) {
	caller := &fakeCaller{}
	payloads := []json.RawMessage{
		listPayload(t, 2, map[string]any{"id": 1}, map[string]any{"id": 2}),
		listPayload(t, 1, map[string]any{"id": 3}),
	}
	var idx int
	caller.handler = func(string, url.Values, any) labelbase.Result {
		res := labelbase.Result{Data: payloads[idx]}
		if idx < len(payloads)-1 {
			idx++
		}
		return res
	}
	s := newTestListStore(t, caller, defaultView())
	ctx := context.Background()

	if err := s.Fetch(ctx, FetchOptions{Reload: true}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	s.FocusNext()
	if s.HighlightedID() != 1 {
		t.Fatalf("highlighted = %d, want 1", s.HighlightedID())
	}

	if err := s.Fetch(ctx, FetchOptions{Reload: true}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.HighlightedID() != 0 {
		t.Fatalf("highlighted = %d, want cleared after record disappeared", s.HighlightedID())
	}
	if s.Highlighted() != nil {
		t.Fatal("Highlighted() should resolve to nil without error")
	}
}

func TestSetList_MergeDeduplicatesAndMovesToEnd(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())

	if err := s.SetList(rawRecords(t, map[string]any{"id": 1}, map[string]any{"id": 2}), 2, true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.SetList(rawRecords(t, map[string]any{"id": 2, "v": "new"}), 2, false); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got := ids(s.List())
	want := []int64{1, 2}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("list = %v, want %v (deduped, moved to end)", got, want)
	}
	if s.List()[1].StringField("v") != "new" {
		t.Fatalf("merged record content not updated: %#v", s.List()[1].Fields)
	}
}

func TestSetList_ReloadReplacesWholesale(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())

	if err := s.SetList(rawRecords(t, map[string]any{"id": 1}, map[string]any{"id": 2}), 2, true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.SetList(rawRecords(t, map[string]any{"id": 5}), 1, true); err != nil {
		t.Fatalf("reload: %v", err)
	}

	got := ids(s.List())
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("list = %v, want [5]", got)
	}
	if s.Total() != 1 {
		t.Fatalf("total = %d, want 1", s.Total())
	}
}

func TestSetList_AppendAccumulatesPages(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())

	if err := s.SetList(rawRecords(t, map[string]any{"id": 1}), 3, true); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if err := s.SetList(rawRecords(t, map[string]any{"id": 2}, map[string]any{"id": 3}), 3, false); err != nil {
		t.Fatalf("page 2: %v", err)
	}

	got := ids(s.List())
	want := []int64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("list = %v, want %v", got, want)
		}
	}
}

func TestTotalPagesAndHasNextPage(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(string, url.Values, any) labelbase.Result {
		return labelbase.Result{Data: listPayload(t, 95)}
	}
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := prefs.Save(path, prefs.Prefs{PageSize: 30}); err != nil {
		t.Fatalf("save prefs: %v", err)
	}
	s := NewListStore(ListStoreOptions{Target: TargetTasks, Caller: caller, Views: defaultView(), Prefs: prefs.Open(path)})
	ctx := context.Background()

	for page := 1; page <= 4; page++ {
		if err := s.Fetch(ctx, FetchOptions{}); err != nil {
			t.Fatalf("fetch page %d: %v", page, err)
		}
		if got := s.TotalPages(); got != 4 {
			t.Fatalf("TotalPages = %d, want ceil(95/30)=4", got)
		}
		wantNext := page != 4
		if got := s.HasNextPage(); got != wantNext {
			t.Fatalf("page %d: HasNextPage = %v, want %v", page, got, wantNext)
		}
	}
}

func TestFocusMoves_ClampToListBounds(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())
	records := rawRecords(t,
		map[string]any{"id": 10},
		map[string]any{"id": 20},
		map[string]any{"id": 30},
	)
	if err := s.SetList(records, 3, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// From an unset highlight the first move lands on the first item.
	s.FocusNext()
	if s.HighlightedID() != 10 {
		t.Fatalf("highlighted = %d, want 10", s.HighlightedID())
	}
	s.FocusNext()
	s.FocusNext()
	if s.HighlightedID() != 30 {
		t.Fatalf("highlighted = %d, want 30", s.HighlightedID())
	}
	// Clamped at the end, not wrapped.
	s.FocusNext()
	if s.HighlightedID() != 30 {
		t.Fatalf("highlighted = %d, want clamp at 30", s.HighlightedID())
	}
	s.FocusPrev()
	s.FocusPrev()
	s.FocusPrev()
	if s.HighlightedID() != 10 {
		t.Fatalf("highlighted = %d, want clamp at 10", s.HighlightedID())
	}
}

func TestFocusPrev_FromUnsetLandsOnFirst(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())
	if err := s.SetList(rawRecords(t, map[string]any{"id": 1}, map[string]any{"id": 2}), 2, true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.FocusPrev()
	if s.HighlightedID() != 1 {
		t.Fatalf("highlighted = %d, want 1", s.HighlightedID())
	}
}

func TestUpdateItem_PatchesOrUpserts(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())
	if err := s.SetList(rawRecords(t, map[string]any{"id": 1, "v": "old", "keep": "x"}), 1, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s.UpdateItem(1, map[string]any{"v": "patched"})
	item := s.List()[0]
	if item.StringField("v") != "patched" || item.StringField("keep") != "x" {
		t.Fatalf("patch result = %#v", item.Fields)
	}

	s.UpdateItem(99, map[string]any{"v": "fresh"})
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2 after upsert", s.Len())
	}
	last := s.List()[1]
	if last.ID != 99 || last.StringField("v") != "fresh" {
		t.Fatalf("upserted item = %#v", last)
	}
}

func TestSetSelected_MirrorsHighlightAndNotifies(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())
	if err := s.SetList(rawRecords(t, map[string]any{"id": 1}, map[string]any{"id": 2}), 2, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	s.SetSelected(2)
	if s.SelectedID() != 2 || s.HighlightedID() != 2 {
		t.Fatalf("selected=%d highlighted=%d, want both 2", s.SelectedID(), s.HighlightedID())
	}
	if len(events) != 1 || events[0].Kind != EventKindSelectionChanged {
		t.Fatalf("events = %#v, want one selection change", events)
	}

	// Re-selecting the same item is silent.
	s.SetSelected(2)
	if len(events) != 1 {
		t.Fatalf("duplicate selection emitted an event")
	}
}

func TestLoadingFlags_PerItemAndScalar(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())

	s.SetLoading(5)
	s.SetLoading(6)
	if !s.IsLoading(5) || !s.IsLoading(6) {
		t.Fatal("per-item loading flags not set")
	}
	if !s.ItemLoadInFlight() {
		t.Fatal("ItemLoadInFlight should report per-item loads")
	}
	s.FinishLoading(5)
	if s.IsLoading(5) || !s.IsLoading(6) {
		t.Fatal("FinishLoading removed the wrong id")
	}
	// Removing an id that was never set is a no-op.
	s.FinishLoading(42)
	s.FinishLoading(6)
	if s.ItemLoadInFlight() {
		t.Fatal("ItemLoadInFlight true with no loads")
	}

	s.SetLoading(0)
	if !s.ItemLoadInFlight() {
		t.Fatal("scalar loading flag not reported")
	}
	s.FinishLoading(0)
	if s.ItemLoadInFlight() {
		t.Fatal("scalar loading flag not cleared")
	}
}

func TestClear_ResetsEverythingButPageSize(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())
	if err := s.SetList(rawRecords(t, map[string]any{"id": 1}), 1, true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.FocusNext()
	pageSize := s.PageSize()

	s.Clear()
	if s.Len() != 0 || s.HighlightedID() != 0 || s.Page() != 0 || s.Total() != 0 {
		t.Fatalf("clear left state behind: len=%d hl=%d page=%d total=%d",
			s.Len(), s.HighlightedID(), s.Page(), s.Total())
	}
	if s.PageSize() != pageSize {
		t.Fatalf("clear touched page size: %d != %d", s.PageSize(), pageSize)
	}
}

func TestLoadItem_UpsertsAndSelects(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(method string, params url.Values, _ any) labelbase.Result {
		if method != "task" {
			return labelbase.Result{Err: fmt.Errorf("unexpected method %s", method)}
		}
		raw, _ := json.Marshal(map[string]any{"id": 3, "full": true})
		return labelbase.Result{Data: raw}
	}
	s := newTestListStore(t, caller, defaultView())

	item, err := s.LoadItem(context.Background(), 3)
	if err != nil {
		t.Fatalf("LoadItem: %v", err)
	}
	if item.ID != 3 {
		t.Fatalf("item id = %d, want 3", item.ID)
	}
	if s.SelectedID() != 3 {
		t.Fatalf("selected = %d, want 3", s.SelectedID())
	}
	if s.IsLoading(3) {
		t.Fatal("per-item loading flag not cleared")
	}
	if v, ok := s.List()[0].Fields["full"].(bool); !ok || !v {
		t.Fatalf("full record not cached: %#v", s.List()[0].Fields)
	}
}

func TestItemSource_IsImmutableSnapshot(t *testing.T) {
	s := newTestListStore(t, &fakeCaller{}, defaultView())
	raw := rawRecords(t, map[string]any{"id": 1, "v": "original"})
	if err := s.SetList(raw, 1, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s.UpdateItem(1, map[string]any{"v": "patched"})

	var snapshot map[string]any
	if err := json.Unmarshal(s.List()[0].Source, &snapshot); err != nil {
		t.Fatalf("decode source: %v", err)
	}
	if snapshot["v"] != "original" {
		t.Fatalf("source snapshot mutated: %#v", snapshot)
	}
}

func TestFetch_ErrorResultSkipsMergeButFinishes(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(string, url.Values, any) labelbase.Result {
		return labelbase.Result{Err: fmt.Errorf("boom"), Status: 500}
	}
	s := newTestListStore(t, caller, defaultView())
	if err := s.SetList(rawRecords(t, map[string]any{"id": 1}), 1, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := s.Fetch(context.Background(), FetchOptions{Reload: true})
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if s.Len() != 1 {
		t.Fatalf("error result mutated list: %v", ids(s.List()))
	}
	if s.Loading() {
		t.Fatal("loading flag stuck after error")
	}
}

func TestFetch_EmitsDataFetchedEvent(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(string, url.Values, any) labelbase.Result {
		return labelbase.Result{Data: listPayload(t, 1, map[string]any{"id": 1})}
	}
	s := newTestListStore(t, caller, defaultView())

	got := make(chan Event, 1)
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventKindDataFetched {
			select {
			case got <- ev:
			default:
			}
		}
	})

	if err := s.Fetch(context.Background(), FetchOptions{Reload: true}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	select {
	case ev := <-got:
		if ev.Target != TargetTasks {
			t.Fatalf("event target = %v, want tasks", ev.Target)
		}
	case <-time.After(time.Second):
		t.Fatal("no dataFetched event emitted")
	}
}
