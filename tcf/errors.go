package tcf

import "errors"

var (
	ErrNoSuchArg    = errors.New("tcf: no such argument")
	ErrMalformed    = errors.New("tcf: malformed frame")
	ErrUnknownKind  = errors.New("tcf: unknown message kind")
	ErrFrameTooLong = errors.New("tcf: frame exceeds maximum size")
)
