package assetviewer

// ProgressStage identifies the current phase of an export.
type ProgressStage uint8

// Progress stages for an export.
const (
	// StageLoading indicates the manifest is being read and parsed.
	StageLoading ProgressStage = iota

	// StageCopying indicates entries are being copied. Name is set on
	// per-entry events.
	StageCopying

	// StageDone indicates the export has finished.
	StageDone
)

func (s ProgressStage) String() string {
	switch s {
	case StageLoading:
		return "loading"
	case StageCopying:
		return "copying"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressEvent represents a progress update during an export.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Name is the logical name of the entry just finished, if applicable.
	Name string

	// Err is the entry's failure, if it failed.
	Err error

	// FilesDone is the number of entries finished, copied or failed.
	FilesDone int

	// FilesTotal is the number of entries to export.
	// Zero indicates the total is unknown (e.g., while loading).
	FilesTotal int
}

// ProgressFunc receives progress updates during an export.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
