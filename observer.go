package comserial

// Direction names the side of a transfer reported to an Observer.
type Direction string

const (
	DirRead  Direction = "read"
	DirWrite Direction = "write"
)

// Observer receives one notification per completed ReadBuffer or WriteBuffer
// call. Implementations must not call back into the Session.
type Observer interface {
	// Transferred reports a call that moved the whole buffer.
	Transferred(dir Direction, n int)
	// TimedOut reports a call that hit its timeout after n bytes.
	TimedOut(dir Direction, n int)
	// Failed reports a runtime failure of the readiness wait or the transfer.
	Failed(dir Direction, err error)
}

type nopObserver struct{}

func (nopObserver) Transferred(Direction, int) {}
func (nopObserver) TimedOut(Direction, int)    {}
func (nopObserver) Failed(Direction, error)    {}
