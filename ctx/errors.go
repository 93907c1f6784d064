package ctx

import "errors"

// ErrNotReady indicates a context's register snapshot has not been
// populated yet (no stop has been observed since attach).
var ErrNotReady = errors.New("ctx: register snapshot not ready")
