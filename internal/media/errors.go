package media

import (
	"errors"
	"fmt"
)

// ErrEncoderUnavailable indicates the encoder binary itself could not be
// invoked. This is distinct from an individual rendition job failing: the
// pipeline reacts by storing the original container as a raw asset instead of
// aborting the upload.
var ErrEncoderUnavailable = errors.New("encoder unavailable")

// InputError rejects an upload before any permanent storage occurs.
type InputError struct {
	Reason    string
	Oversized bool
}

func (e *InputError) Error() string {
	return e.Reason
}

// EncodeError reports a rendition job that reached a failed or timed-out
// terminal state. TimedOut distinguishes jobs killed by their deadline from
// jobs the encoder itself rejected.
type EncodeError struct {
	Rendition string
	TimedOut  bool
	Err       error
}

func (e *EncodeError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("rendition %s timed out", e.Rendition)
	}
	return fmt.Sprintf("rendition %s failed: %v", e.Rendition, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a catalog write failure after transcoding succeeded.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist asset: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsEncodeTimeout reports whether err carries a timed-out rendition job.
func IsEncodeTimeout(err error) bool {
	var encodeErr *EncodeError
	return errors.As(err, &encodeErr) && encodeErr.TimedOut
}
