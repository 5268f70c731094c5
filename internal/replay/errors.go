package replay

import "errors"

// ErrSourceExhausted is a sentinel for a clean end-of-stream, distinct
// from io.EOF. Nothing in this module returns or checks it; Engine itself
// just returns nil on io.EOF.
var ErrSourceExhausted = errors.New("replay source exhausted")
