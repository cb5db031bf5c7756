package ports

import "context"

// FileEventType describes a change observed in a watched directory
type FileEventType int

const (
	FileCreated FileEventType = iota
	FileModified
	FileDeleted
)

func (t FileEventType) String() string {
	switch t {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}

// FileEvent is one debounced change to a dataset file
type FileEvent struct {
	Path string
	Type FileEventType
}

// FileWatcher streams dataset file changes until the context is cancelled
type FileWatcher interface {
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)
	Close() error
}
