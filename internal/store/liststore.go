package store

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/calref/curator/internal/labelbase"
	"github.com/calref/curator/internal/prefs"
)

// ListStore is the paginated, cancelable cache of Items for one target
// collection. Multiple fetches may be in flight at once; the request token
// minted at the start of each fetch is the sole cancellation mechanism: a
// response whose token has been superseded is discarded without touching
// state.
type ListStore struct {
	mu     sync.Mutex
	target Target
	caller Caller
	views  ViewSource
	prefs  *prefs.Store

	page     int
	pageSize int
	total    int
	list     []*Item

	selectedID    int64
	highlightedID int64

	loading      bool
	loadingItem  bool
	loadingItems map[int64]struct{}

	requestID uuid.UUID

	postFetch func(*ListStore)
	listeners listenerList
}

// ListStoreOptions configure a ListStore.
type ListStoreOptions struct {
	Target Target
	Caller Caller
	Views  ViewSource
	Prefs  *prefs.Store
	// PostFetch runs after each completed fetch, outside the store's lock.
	PostFetch func(*ListStore)
}

const fallbackPageSize = 30

// NewListStore builds a store bound to one target collection. The page size
// comes from the persisted preference.
func NewListStore(opts ListStoreOptions) *ListStore {
	pageSize := fallbackPageSize
	if opts.Prefs != nil {
		pageSize = opts.Prefs.PageSize()
	}
	return &ListStore{
		target:       opts.Target,
		caller:       opts.Caller,
		views:        opts.Views,
		prefs:        opts.Prefs,
		pageSize:     pageSize,
		loadingItems: make(map[int64]struct{}),
		postFetch:    opts.PostFetch,
	}
}

// Subscribe registers an observer for this store's events.
func (s *ListStore) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners.add(fn)
}

// FetchOptions configure one page fetch.
type FetchOptions struct {
	// ViewID targets an explicit view instead of the currently selected one.
	ViewID int64
	// Query is a free-form filter; sent instead of the view id when set.
	Query string
	// PageNumber jumps to an explicit page. Zero means "advance".
	PageNumber int
	// Reload takes a fresh first page and replaces the cache wholesale.
	Reload bool
	// Interaction tags the request for analytics context.
	Interaction string
	// PageSize, when positive, becomes the new persisted page size.
	PageSize int
}

// Fetch loads one page of the target collection and merges it into the
// cache. A fetch that cannot resolve a view is a silent no-op performed
// before any state mutation. A fetch superseded by a newer one discards its
// response entirely.
func (s *ListStore) Fetch(ctx context.Context, opts FetchOptions) error {
	viewID := opts.ViewID
	query := opts.Query
	if viewID == 0 {
		view, ok := s.views.Selected()
		if !ok {
			return nil
		}
		viewID = view.ID
		if view.Virtual {
			query = view.Query
		} else {
			query = ""
		}
	}

	s.mu.Lock()
	token := uuid.New()
	s.requestID = token
	s.loading = true

	switch {
	case opts.PageNumber > 0:
		s.page = opts.PageNumber
	case opts.Reload:
		s.page = 1
	default:
		s.page++
	}

	if opts.PageSize > 0 {
		s.pageSize = opts.PageSize
		if s.prefs != nil {
			s.prefs.SetPageSize(opts.PageSize)
		}
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(s.page))
	params.Set("page_size", strconv.Itoa(s.pageSize))
	if query != "" {
		params.Set("query", query)
	} else {
		params.Set("view", strconv.FormatInt(viewID, 10))
	}
	if opts.Interaction != "" {
		params.Set("interaction", opts.Interaction)
	}
	method := s.target.listMethod()
	s.mu.Unlock()

	res := s.caller.APICall(ctx, method, params, nil)

	s.mu.Lock()
	if s.requestID != token {
		// A newer fetch started while this one was in flight.
		s.mu.Unlock()
		return nil
	}

	var fetchErr error
	if res.Err != nil {
		fetchErr = res.Err
	} else {
		var payload labelbase.ListResponse
		if err := res.Decode(&payload); err != nil {
			fetchErr = err
		} else if records := payload.Records(); records != nil {
			if err := s.setListLocked(records, payload.Total, opts.Reload || opts.PageNumber > 0); err != nil {
				fetchErr = err
			}
			if s.highlightedID != 0 && s.indexOfLocked(s.highlightedID) < 0 {
				s.highlightedID = 0
			}
		}
	}
	s.loading = false
	s.mu.Unlock()

	if s.postFetch != nil {
		s.postFetch(s)
	}
	s.listeners.emit(Event{Kind: EventKindDataFetched, Target: s.target, Method: method})
	return fetchErr
}

// Reload fetches a fresh first page, replacing the cache.
func (s *ListStore) Reload(ctx context.Context, opts FetchOptions) error {
	opts.Reload = true
	return s.Fetch(ctx, opts)
}

// SetList merges raw records into the cache and updates the server-reported
// total. With reload the cache is replaced wholesale in server order;
// otherwise records are deduplicated by id (an existing record moves to the
// end with its new content) and appended.
func (s *ListStore) SetList(records []json.RawMessage, total int, reload bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setListLocked(records, total, reload)
}

func (s *ListStore) setListLocked(records []json.RawMessage, total int, reload bool) error {
	incoming := make([]*Item, 0, len(records))
	for _, raw := range records {
		item, err := newItem(raw)
		if err != nil {
			return err
		}
		incoming = append(incoming, item)
	}

	s.total = total

	if reload {
		s.list = incoming
		return nil
	}
	for _, item := range incoming {
		if i := s.indexOfLocked(item.ID); i >= 0 {
			s.list = append(s.list[:i], s.list[i+1:]...)
		}
	}
	s.list = append(s.list, incoming...)
	return nil
}

// SetSelected makes the item with the given id the active selection and
// mirrors it into the highlight. Selecting the already-selected item is a
// no-op; selecting an id absent from the cache still records the id, and the
// selection simply resolves to nothing until the item arrives.
func (s *ListStore) SetSelected(id int64) {
	s.mu.Lock()
	if s.selectedID == id {
		s.mu.Unlock()
		return
	}
	s.selectedID = id
	s.highlightedID = id
	s.mu.Unlock()

	s.listeners.emit(Event{Kind: EventKindSelectionChanged, Target: s.target})
}

// SetLoading marks an individual record as loading, or the scalar
// single-item flag when id is zero.
func (s *ListStore) SetLoading(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		s.loadingItem = true
		return
	}
	s.loadingItems[id] = struct{}{}
}

// FinishLoading clears the flag set by SetLoading. Clearing an id that was
// never set is a no-op.
func (s *ListStore) FinishLoading(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		s.loadingItem = false
		return
	}
	delete(s.loadingItems, id)
}

// FocusNext moves the highlight one item down, clamped to the last item.
// With nothing highlighted the focus lands on the first item.
func (s *ListStore) FocusNext() {
	s.moveFocus(1)
}

// FocusPrev moves the highlight one item up, clamped to the first item.
func (s *ListStore) FocusPrev() {
	s.moveFocus(-1)
}

func (s *ListStore) moveFocus(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) == 0 {
		return
	}
	i := s.indexOfLocked(s.highlightedID) + delta
	if i >= len(s.list) {
		i = len(s.list) - 1
	}
	if i < 0 {
		i = 0
	}
	s.highlightedID = s.list[i].ID
}

// UpdateItem patches the cached record in place, or appends a new one built
// from the patch when the id is not cached (upsert).
func (s *ListStore) UpdateItem(id int64, patch map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfLocked(id); i >= 0 {
		item := s.list[i]
		if item.Fields == nil {
			item.Fields = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			item.Fields[k] = v
		}
		return
	}
	fields := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		fields[k] = v
	}
	fields["id"] = id
	src, _ := json.Marshal(fields)
	s.list = append(s.list, &Item{ID: id, Fields: fields, Source: src})
}

// upsertRaw replaces the cached record wholesale with a freshly loaded one,
// preserving its position, or appends it when absent.
func (s *ListStore) upsertRaw(raw json.RawMessage) (*Item, error) {
	item, err := newItem(raw)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfLocked(item.ID); i >= 0 {
		s.list[i] = item
	} else {
		s.list = append(s.list, item)
	}
	return item, nil
}

// LoadItem fetches one full record, upserts it into the cache, and selects
// it. The record is individually flagged as loading for the duration.
func (s *ListStore) LoadItem(ctx context.Context, id int64) (*Item, error) {
	s.SetLoading(id)
	defer s.FinishLoading(id)

	params := url.Values{}
	params.Set("id", strconv.FormatInt(id, 10))
	res := s.caller.APICall(ctx, s.target.itemMethod(), params, nil)
	if res.Err != nil {
		return nil, res.Err
	}

	item, err := s.upsertRaw(res.Data)
	if err != nil {
		return nil, err
	}
	s.SetSelected(item.ID)
	return item, nil
}

// LoadNext fetches the stream's next record, upserts it, and selects it.
// Used in labelstream mode where the server picks the record.
func (s *ListStore) LoadNext(ctx context.Context) (*Item, error) {
	s.SetLoading(0)
	defer s.FinishLoading(0)

	res := s.caller.APICall(ctx, "nextTask", nil, nil)
	if res.Err != nil {
		return nil, res.Err
	}

	item, err := s.upsertRaw(res.Data)
	if err != nil {
		return nil, err
	}
	s.SetSelected(item.ID)
	return item, nil
}

// Clear empties the cache and resets pagination. The page size preference is
// untouched.
func (s *ListStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
	s.highlightedID = 0
	s.page = 0
	s.total = 0
}

// Unselect drops the selection, and the highlight with it unless kept.
func (s *ListStore) Unselect(keepHighlight bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = 0
	if !keepHighlight {
		s.highlightedID = 0
	}
}

// Target returns the collection kind this store caches.
func (s *ListStore) Target() Target {
	return s.target
}

// List returns a copy of the cached items in display order.
func (s *ListStore) List() []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := make([]*Item, len(s.list))
	copy(dup, s.list)
	return dup
}

// Len reports the number of cached items.
func (s *ListStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// Selected resolves the selected id to its item, or nil when unset or no
// longer cached.
func (s *ListStore) Selected() *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemLocked(s.selectedID)
}

// SelectedID returns the selected id, zero when unset.
func (s *ListStore) SelectedID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Highlighted resolves the highlighted id to its item, or nil when unset or
// no longer cached.
func (s *ListStore) Highlighted() *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemLocked(s.highlightedID)
}

// HighlightedID returns the highlighted id, zero when unset.
func (s *ListStore) HighlightedID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlightedID
}

// Page returns the current page number.
func (s *ListStore) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// PageSize returns the current page size.
func (s *ListStore) PageSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageSize
}

// Total returns the server-reported record count.
func (s *ListStore) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// TotalPages derives the page count from the server-reported total.
func (s *ListStore) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPagesLocked()
}

func (s *ListStore) totalPagesLocked() int {
	if s.pageSize <= 0 {
		return 0
	}
	return (s.total + s.pageSize - 1) / s.pageSize
}

// HasNextPage reports whether another page can be fetched.
func (s *ListStore) HasNextPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page != s.totalPagesLocked()
}

// Loading reports whether a page fetch is in flight.
func (s *ListStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// IsLoading reports whether the given record is individually loading.
func (s *ListStore) IsLoading(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loadingItems[id]
	return ok
}

// ItemLoadInFlight reports whether any single-record load is in flight.
func (s *ListStore) ItemLoadInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingItem || len(s.loadingItems) > 0
}

func (s *ListStore) itemLocked(id int64) *Item {
	if id == 0 {
		return nil
	}
	if i := s.indexOfLocked(id); i >= 0 {
		return s.list[i]
	}
	return nil
}

func (s *ListStore) indexOfLocked(id int64) int {
	if id == 0 {
		return -1
	}
	for i, item := range s.list {
		if item.ID == id {
			return i
		}
	}
	return -1
}
