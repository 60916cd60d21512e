package sessioncodec

import "errors"

// ErrLegacyCatchainIDsUnsupported is returned when asked to encode
// SessionOptions with the pre-boxed catchain id scheme.
var ErrLegacyCatchainIDsUnsupported = errors.New("sessioncodec: legacy catchain ids are not supported")
