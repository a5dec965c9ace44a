package trees

import "errors"

// Policy refusals. The offending URI is marked excluded when that matters for
// the serializer, nothing else changes.
var (
	ErrNameCollision = errors.New("a sibling with the same name already exists")
	ErrTooDeep       = errors.New("directory exceeds the ISO9660 depth limit")
	ErrOversized     = errors.New("file exceeds the plain ISO9660 size limit")
)

// Invalid operation arguments. The tree is left untouched.
var (
	ErrInvalidName        = errors.New("invalid node name")
	ErrInvalidNode        = errors.New("invalid node")
	ErrMoveIntoSelf       = errors.New("cannot move a node onto itself")
	ErrMoveIntoDescendant = errors.New("cannot move a node into one of its descendants")
	ErrNotDirectory       = errors.New("parent is not a directory")
	ErrParentLoading      = errors.New("parent directory is still loading")
	ErrImportedNode       = errors.New("operation not supported on imported session content")
)

// Handle and observer failures.
var (
	ErrRejected = errors.New("node rejected by observer")
	ErrNoHandle = errors.New("no reference handle available")
	ErrStaleRef = errors.New("reference no longer resolves to a node")
	ErrExcluded = errors.New("uri is excluded or grafted elsewhere")
)

// Failures reported by a Loader. They are turned into tree state and a
// EventLoadFailed notification, never into a failed batch.
var (
	ErrNotFound    = errors.New("file not found")
	ErrUnreadable  = errors.New("file is not readable")
	ErrSymlinkLoop = errors.New("recursive symbolic link")
)

// Spanning.
var (
	ErrNothingToSpan = errors.New("no content left to span")
	ErrSpanTooBig    = errors.New("no remaining top-level item fits the disc")
)
