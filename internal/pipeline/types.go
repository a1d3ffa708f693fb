package pipeline

import "time"

// State is a step of a conversion run.
type State int

const (
	StateConfiguring State = iota
	StateResolving
	StateReporting
	StateDryExit
	StateStreaming
	StateClosing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateConfiguring: "configuring",
	StateResolving:   "resolving",
	StateReporting:   "reporting",
	StateDryExit:     "dry_exit",
	StateStreaming:   "streaming",
	StateClosing:     "closing",
	StateDone:        "done",
	StateFailed:      "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateDryExit || s == StateFailed
}

// Stats summarizes a finished run.
type Stats struct {
	State        State         `json:"state"`
	Columns      int           `json:"columns"`
	RowsWritten  int64         `json:"rows_written"`
	Batches      int64         `json:"batches"`
	BytesWritten int64         `json:"bytes_written"`
	Duration     time.Duration `json:"duration"`
}

// MarshalText renders the state name in JSON summaries.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
