package store

import "time"

// Build statuses.
const (
	BuildRunning = "running"
	BuildSuccess = "success"
	BuildFailure = "failure"
)

// Build is one run of the build pipeline.
type Build struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	FilesBuilt   int
	FilesSkipped int
}

// File is the manifest entry of one tree file, as of the last build that
// processed or skipped it.
type File struct {
	ID        int64
	Path      string
	Hash      string
	Output    string
	HasErrors bool
	BuildID   string
	BuiltAt   time.Time
}

// FileDep is a file a tree's result depends on (an import or a subtree)
// with its modification time when the tree was built.
type FileDep struct {
	FileID int64
	Path   string
	Mtime  time.Time
}

// Diagnostic is a stored diagnostic. Path is filled by queries that join
// the owning file.
type Diagnostic struct {
	ID       int64
	FileID   int64
	Path     string
	Kind     string
	NodeID   string
	NodeName string
	Message  string
}
