package worker

import "github.com/tingwen/kplus-repair-uploader/internal/ledger"

// Event is one message on a worker's event stream. Listeners switch on the
// concrete type. The stream is closed when the worker stops, whether it
// finished or was cancelled; a cancelled worker never emits FinishedEvent.
type Event interface {
	isEvent()
}

// ProgressEvent reports overall completion in percent.
type ProgressEvent struct {
	Percent int
}

// StatusEvent carries a human-readable status line.
type StatusEvent struct {
	Text string
}

// RecordEvent reports the outcome of a single record.
type RecordEvent struct {
	ProductFID string
	Success    bool
	Reason     string
}

// FinishedEvent is the terminal event of a completed run. Results holds the
// per-record outcomes accumulated so far, even when Success is false.
type FinishedEvent struct {
	Success bool
	Summary string
	Results []ledger.Result
}

func (ProgressEvent) isEvent() {}
func (StatusEvent) isEvent()   {}
func (RecordEvent) isEvent()   {}
func (FinishedEvent) isEvent() {}
