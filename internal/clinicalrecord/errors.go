package clinicalrecord

import "errors"

// ErrMalformedEvent marks a message that can never be processed and should
// not be redelivered.
var ErrMalformedEvent = errors.New("malformed clinical record event")
