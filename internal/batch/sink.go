package batch

import "io"

// Sink receives copied objects.
//
// Writer is called concurrently from multiple workers; implementations must
// be safe for concurrent use.
type Sink interface {
	Writer(job *Job) (Committer, error)
}

// Committer is a writer whose output only becomes visible on Commit.
type Committer interface {
	io.Writer

	// Commit makes the written content visible at its final location.
	Commit() error

	// Discard abandons the written content.
	Discard() error
}
