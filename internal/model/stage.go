package model

// Stage is the processing state of a single object during a run.
type Stage int

const (
	StageDiscovered Stage = iota
	StageDownloading
	StageDownloaded
	StageDecompressing
	StageDecompressed
	StageForwarding
	StageCompleted
	StageFailed
)

var stageNames = [...]string{
	StageDiscovered:    "discovered",
	StageDownloading:   "downloading",
	StageDownloaded:    "downloaded",
	StageDecompressing: "decompressing",
	StageDecompressed:  "decompressed",
	StageForwarding:    "forwarding",
	StageCompleted:     "completed",
	StageFailed:        "failed",
}

// String returns the lowercase stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}
