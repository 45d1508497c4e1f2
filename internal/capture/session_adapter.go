package capture

// VideoCapture adapts a VideoLoop and its source into the session
// package's Capture interface (Run/Cancel), since the loop itself knows
// how to run but cancellation is a property of the source's sticky timer.
type VideoCapture[S any] struct {
	loop   *VideoLoop[S]
	source VideoSource[S]
}

// NewVideoCapture builds a session-ready capture over loop/source.
func NewVideoCapture[S any](loop *VideoLoop[S], source VideoSource[S]) *VideoCapture[S] {
	return &VideoCapture[S]{loop: loop, source: source}
}

func (c *VideoCapture[S]) Run() error { return c.loop.Run() }
func (c *VideoCapture[S]) Cancel()    { c.source.Timer().Cancel() }

// AudioCapture adapts an AudioLoop and its source into the session
// package's Capture interface.
type AudioCapture[S any] struct {
	loop   *AudioLoop[S]
	source AudioSource[S]
}

// NewAudioCapture builds a session-ready capture over loop/source.
func NewAudioCapture[S any](loop *AudioLoop[S], source AudioSource[S]) *AudioCapture[S] {
	return &AudioCapture[S]{loop: loop, source: source}
}

func (c *AudioCapture[S]) Run() error { return c.loop.Run() }
func (c *AudioCapture[S]) Cancel()    { c.source.Event().Cancel() }
