// Package views manages the server-defined tabs: which one is selected,
// each tab's row-selection snapshot, and the advisory lock taken while a
// remote action runs against a tab.
package views

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/calref/curator/internal/labelbase"
)

// Caller dispatches API calls through the application's funnel.
type Caller interface {
	APICall(ctx context.Context, method string, params url.Values, body any) labelbase.Result
}

// Store holds the fetched tabs and columns plus per-tab state.
type Store struct {
	mu         sync.Mutex
	caller     Caller
	tabs       []labelbase.Tab
	columns    []labelbase.Column
	selectedID int64
	selections map[int64]*labelbase.Selection
	locks      map[int64]bool
}

// New builds an empty views store. The caller is bound later because the
// funnel itself needs this store at construction.
func New() *Store {
	return &Store{
		selections: make(map[int64]*labelbase.Selection),
		locks:      make(map[int64]bool),
	}
}

// SetCaller binds the API funnel.
func (s *Store) SetCaller(c Caller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caller = c
}

// Fetch loads tabs and columns. The first tab becomes selected when nothing
// is selected yet.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	caller := s.caller
	s.mu.Unlock()
	if caller == nil {
		return fmt.Errorf("views store has no caller bound")
	}

	res := caller.APICall(ctx, "tabs", nil, nil)
	if res.Err != nil {
		if res.NotFound() {
			return nil
		}
		return res.Err
	}
	var tabsPayload labelbase.TabListResponse
	if err := res.Decode(&tabsPayload); err != nil {
		return err
	}

	var columns []labelbase.Column
	colRes := caller.APICall(ctx, "columns", nil, nil)
	if colRes.Err == nil {
		var colPayload labelbase.ColumnListResponse
		if err := colRes.Decode(&colPayload); err == nil {
			columns = colPayload.Columns
		}
	}

	s.mu.Lock()
	s.tabs = tabsPayload.Tabs
	s.columns = columns
	if s.selectedID == 0 && len(s.tabs) > 0 {
		s.selectedID = s.tabs[0].ID
	}
	s.mu.Unlock()
	return nil
}

// Tabs returns the fetched tab descriptors.
func (s *Store) Tabs() []labelbase.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]labelbase.Tab(nil), s.tabs...)
}

// Columns returns the fetched column descriptors.
func (s *Store) Columns() []labelbase.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]labelbase.Column(nil), s.columns...)
}

// Select makes the given tab current. Unknown ids are ignored.
func (s *Store) Select(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tab := range s.tabs {
		if tab.ID == id {
			s.selectedID = id
			return
		}
	}
}

// Selected returns the current tab descriptor.
func (s *Store) Selected() (labelbase.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tab := range s.tabs {
		if tab.ID == s.selectedID {
			return tab, true
		}
	}
	return labelbase.Tab{}, false
}

// First returns the first fetched tab descriptor.
func (s *Store) First() (labelbase.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tabs) == 0 {
		return labelbase.Tab{}, false
	}
	return s.tabs[0], true
}

// Ordering returns the tab's ordering clause.
func (s *Store) Ordering(viewID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tab := range s.tabs {
		if tab.ID == viewID {
			return append([]string(nil), tab.Ordering...)
		}
	}
	return nil
}

// Filters returns the tab's serialized filters, nil when it has none.
func (s *Store) Filters(viewID int64) *labelbase.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tab := range s.tabs {
		if tab.ID == viewID {
			return tab.Filters
		}
	}
	return nil
}

// Selection returns the tab's row-selection snapshot, defaulting to the
// empty selection.
func (s *Store) Selection(viewID int64) labelbase.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel := s.selections[viewID]; sel != nil {
		dup := *sel
		dup.Included = append([]int64(nil), sel.Included...)
		return dup
	}
	return labelbase.Selection{Included: []int64{}}
}

// ToggleSelected flips one row in the tab's selection snapshot.
func (s *Store) ToggleSelected(viewID, itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := s.selections[viewID]
	if sel == nil {
		sel = &labelbase.Selection{}
		s.selections[viewID] = sel
	}
	for i, id := range sel.Included {
		if id == itemID {
			sel.Included = append(sel.Included[:i], sel.Included[i+1:]...)
			return
		}
	}
	sel.Included = append(sel.Included, itemID)
}

// SelectAll marks the whole tab selected.
func (s *Store) SelectAll(viewID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[viewID] = &labelbase.Selection{All: true}
}

// ClearSelection resets the tab's selection snapshot.
func (s *Store) ClearSelection(viewID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, viewID)
}

// Lock takes the tab's advisory lock. Remote actions hold it so the user
// cannot re-trigger one while another is outstanding on the same tab.
func (s *Store) Lock(viewID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[viewID] = true
}

// Unlock releases the tab's advisory lock.
func (s *Store) Unlock(viewID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, viewID)
}

// Locked reports whether the tab's advisory lock is held.
func (s *Store) Locked(viewID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[viewID]
}
