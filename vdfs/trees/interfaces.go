package trees

import "time"

// FileInfo holds the attributes a Loader resolves for a URI.
type FileInfo struct {
	Name          string
	IsDir         bool
	Size          int64
	IsSymlink     bool
	SymlinkTarget string
	MimeType      string
	ModTime       time.Time
}

// ImportedInfo describes an entry of a previously burned session.
type ImportedInfo struct {
	Name    string
	IsDir   bool
	Size    int64
	Address int64
}

// Loader resolves metadata asynchronously. Results are delivered back with
// NodeMetadataResolved, AddExploredChild and DirectoryContentsResolved,
// always carrying the Ref given here.
type Loader interface {
	LoadInfo(ref Ref, uri string)
	LoadDirectory(ref Ref, uri string)
}

// Monitor watches the source of settled nodes. Changes are delivered back
// with ApplyMonitorEvent keyed by the watched Ref.
type Monitor interface {
	Watch(ref Ref, uri string, isDir bool) error
	Unwatch(ref Ref)
}

// MonitorEventType identifies a file system change.
type MonitorEventType int

const (
	FileAdded MonitorEventType = iota
	FileRemoved
	FileRenamed
	FileMoved
	FileModified
)

func (t MonitorEventType) String() string {
	switch t {
	case FileAdded:
		return "added"
	case FileRemoved:
		return "removed"
	case FileRenamed:
		return "renamed"
	case FileMoved:
		return "moved"
	case FileModified:
		return "modified"
	default:
		return "unknown"
	}
}

// MonitorEvent is a change below or on a watched node. Ref is the watched
// node. For a directory, Name is the entry inside it; for a watched file
// Name is empty. Renames carry NewName, moves carry DestRef and DestName.
type MonitorEvent struct {
	Type     MonitorEventType
	Ref      Ref
	Name     string
	NewName  string
	DestRef  Ref
	DestName string
}

// TreeMetrics holds statistical information about the tree
type TreeMetrics struct {
	TotalNodes   int64
	TotalSectors int64
	MaxDepth     int
	Grafts       int
	Excluded     int
	Joliet       int
	Refs         int
	Stats        FileTreeStats
	LastUpdated  time.Time

	// OperationCounts counts tree events by type name.
	OperationCounts map[string]int64
}
