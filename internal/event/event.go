package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	TransferStarted Type = iota + 1
	TransferComplete
	FileStarted
	FileCompleted
	FileFailed
	FileSkipped
	DirCreated
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	TransferStarted:  "TransferStarted",
	TransferComplete: "TransferComplete",
	FileStarted:      "FileStarted",
	FileCompleted:    "FileCompleted",
	FileFailed:       "FileFailed",
	FileSkipped:      "FileSkipped",
	DirCreated:       "DirCreated",
	VerifyOK:         "VerifyOK",
	VerifyFailed:     "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from a transfer.
type Event struct {
	Timestamp time.Time
	Error     error
	Path      string // relative to the transfer root
	Size      int64  // file size or bytes copied
	Type      Type
}

// Emit sends e on ch without blocking. A nil ch discards the event.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
