package labelbase

import (
	"encoding/json"
	"strings"
)

// Project mirrors the payload returned by /api/project.
type Project struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	LabelConfig       string `json:"label_config"`
	TaskCount         int    `json:"task_count"`
	FinishedTaskCount int    `json:"finished_task_count"`
	UpdatedAt         string `json:"updated_at"`
}

// Configured reports whether the project carries a usable labeling config.
func (p Project) Configured() bool {
	return strings.TrimSpace(p.LabelConfig) != ""
}

// User describes one member of the project.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Tab is a server-side view descriptor: which collection it targets and how
// the records in it are filtered and ordered.
type Tab struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Target   string   `json:"target"`
	Virtual  bool     `json:"virtual"`
	Query    string   `json:"query"`
	Ordering []string `json:"ordering"`
	Filters  *Filters `json:"filters"`
}

// Filters is a conjunction of serialized filter items attached to a tab.
type Filters struct {
	Conjunction string       `json:"conjunction"`
	Items       []FilterItem `json:"items"`
}

// FilterItem is one serialized filter predicate.
type FilterItem struct {
	Filter   string `json:"filter"`
	Operator string `json:"operator"`
	Type     string `json:"type"`
	Value    any    `json:"value"`
}

// Column describes one displayable field of a target collection.
type Column struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// Action describes an operation the server can run against the current
// selection and filter context.
type Action struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Order         int    `json:"order"`
	DialogText    string `json:"dialog_text"`
	DialogType    string `json:"dialog_type"`
	Disabled      bool   `json:"disabled"`
	Experimental  bool   `json:"experimental"`
	PermitsFilter bool   `json:"permits_filter"`
}

// Selection is the wire form of a view's row selection snapshot.
type Selection struct {
	All      bool    `json:"all"`
	Included []int64 `json:"included"`
}

// Empty reports whether the selection is the default empty one.
func (s Selection) Empty() bool {
	return !s.All && len(s.Included) == 0
}

// ListResponse mirrors a paginated collection payload. The server keys the
// record array by collection name, so both are declared and the caller takes
// whichever is present.
type ListResponse struct {
	Total       int               `json:"total"`
	Tasks       []json.RawMessage `json:"tasks"`
	Annotations []json.RawMessage `json:"annotations"`
}

// Records returns whichever record array the payload carried.
func (r ListResponse) Records() []json.RawMessage {
	if r.Tasks != nil {
		return r.Tasks
	}
	return r.Annotations
}

// TabListResponse mirrors /api/tabs.
type TabListResponse struct {
	Tabs []Tab `json:"tabs"`
}

// ColumnListResponse mirrors /api/columns.
type ColumnListResponse struct {
	Columns []Column `json:"columns"`
}

// ActionResponse mirrors the body returned by a remote action invocation.
type ActionResponse struct {
	Reload         bool   `json:"reload"`
	ProcessedItems int    `json:"processed_items"`
	Detail         string `json:"detail"`
}
