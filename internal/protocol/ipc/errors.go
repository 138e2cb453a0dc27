package ipc

import "errors"

var (
	ErrTruncated    = errors.New("ipc: truncated record")
	ErrUnknownType  = errors.New("ipc: unknown message type")
	ErrFieldTooLong = errors.New("ipc: field exceeds record capacity")
)
