package interactive

import "time"

// Recorder receives flow events for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// FlowFinished is called once per Run with the outcome kind, or "error"
	// for fatal failures.
	FlowFinished(outcome string, duration time.Duration)
	PortBindAttempt(success bool)
	StrayRequest(limited bool)
	BrowserLaunch(success bool)
}

type nopRecorder struct{}

func (nopRecorder) FlowFinished(string, time.Duration) {}
func (nopRecorder) PortBindAttempt(bool)               {}
func (nopRecorder) StrayRequest(bool)                  {}
func (nopRecorder) BrowserLaunch(bool)                 {}
