package transcode

import "errors"

// Error kinds. Match with errors.Is.
var (
	ErrUnreadableSource      = errors.New("unreadable source")
	ErrDestinationUnwritable = errors.New("destination unwritable")
	ErrRead                  = errors.New("read failed")
	ErrWrite                 = errors.New("write failed")
	ErrFinalize              = errors.New("finalize failed")
	ErrCancelled             = errors.New("run cancelled")

	ErrRunActive   = errors.New("a run is already prepared or running")
	ErrNotPrepared = errors.New("pipeline is not prepared")
)

// Error is a pipeline failure of a given Kind. It unwraps to both the kind
// sentinel and the underlying cause.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + " " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an Error. Backends use it to report setup failures with a
// specific kind.
func NewError(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// classify returns err unchanged when it already carries kind, otherwise it
// wraps it.
func classify(kind error, op, path string, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return NewError(kind, op, path, err)
}
