package watcher

import "time"

// Kind is the type of change reported for a path.
type Kind int

const (
	Changed Kind = iota
	Created
	Deleted
	RenamedFrom
	RenamedTo
)

func (k Kind) String() string {
	switch k {
	case Changed:
		return "changed"
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case RenamedFrom:
		return "renamed-from"
	case RenamedTo:
		return "renamed-to"
	default:
		return "unknown"
	}
}

// RawEvent is one change notification as delivered by the watch source.
type RawEvent struct {
	NativePath string
	Kind       Kind
	ObservedAt time.Time
}
