package repo

import "errors"

// Error kinds surfaced by repository operations. Callers distinguish them
// with errors.Is; the engine never recovers from them silently, except
// that a missing (not corrupt) index file loads as an empty index.
var (
	// ErrInvalidPath marks a staged or tree path that is empty, absolute,
	// or escapes the repository root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrIndexCorrupt marks an index file that exists but cannot be
	// parsed or fails its integrity checksum.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrNotStaged is returned when unstaging a path that is not in the
	// index.
	ErrNotStaged = errors.New("path not staged")

	// ErrEmptyCommit guards no-op commits: nothing staged, or a tree
	// identical to the current HEAD commit's tree.
	ErrEmptyCommit = errors.New("nothing to commit")

	// ErrUnknownRevision is returned when a name is neither a known
	// reference nor a digest (prefix) of a stored commit.
	ErrUnknownRevision = errors.New("unknown revision")
)
