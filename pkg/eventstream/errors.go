package eventstream

import "errors"

// ErrNilEvent indicates a nil session event payload was provided to a publisher.
var ErrNilEvent = errors.New("nil session event")
