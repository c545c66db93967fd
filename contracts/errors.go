package contracts

import "errors"

// Every failure in the pipeline wraps exactly one of these sentinels so
// that callers can classify it with errors.Is. There is no partial-success
// mode: any of them aborts the whole run.
var (
	ParseErr      = errors.New("manifest parse error")
	IntegrityErr  = errors.New("integrity mismatch")
	PathSafetyErr = errors.New("unsafe archive path")
	TransportErr  = errors.New("transport failure")
	ValidationErr = errors.New("malformed version")
	InvocationErr = errors.New("invalid invocation")
)
