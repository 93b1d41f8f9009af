package store

// Target names the collection kind a ListStore operates over. The two
// concrete stores are selected through this enum rather than by runtime
// string lookup.
type Target int

const (
	TargetTasks Target = iota
	TargetAnnotations
)

const targetCount = 2

// String returns the wire name of the target.
func (t Target) String() string {
	switch t {
	case TargetAnnotations:
		return "annotations"
	default:
		return "tasks"
	}
}

// TargetFromString maps a view descriptor's target name onto the enum,
// defaulting to tasks for anything unrecognized.
func TargetFromString(name string) Target {
	if name == "annotations" {
		return TargetAnnotations
	}
	return TargetTasks
}

// listMethod is the API method that pages this target's collection.
func (t Target) listMethod() string {
	if t == TargetAnnotations {
		return "annotations"
	}
	return "tasks"
}

// itemMethod is the API method that loads one full record of this target.
func (t Target) itemMethod() string {
	if t == TargetAnnotations {
		return "annotation"
	}
	return "task"
}
