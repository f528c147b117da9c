// Package metrics provides diagnostic counters for the light mixer loop.
//
// Components receive a Recorder through options and default to
// NoopRecorder, so they never nil-check before recording. The Prometheus
// implementation keeps its values in a private registry that is exported
// through the node_exporter textfile collector; the binary opens no
// listening socket.
package metrics

// Recorder defines the diagnostic hooks used by the control loop.
type Recorder interface {
	IncInvalidTransition()
	IncButtonPress()
	IncTouchEvent()
	IncSaveRequest()
	IncCommit(success bool)
	SetBrightness(v uint8)
	SetEnabled(on bool)
	SetPosition(v uint8)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncInvalidTransition() {}
func (NoopRecorder) IncButtonPress()       {}
func (NoopRecorder) IncTouchEvent()        {}
func (NoopRecorder) IncSaveRequest()       {}
func (NoopRecorder) IncCommit(bool)        {}
func (NoopRecorder) SetBrightness(uint8)   {}
func (NoopRecorder) SetEnabled(bool)       {}
func (NoopRecorder) SetPosition(uint8)     {}
