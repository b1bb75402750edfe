package queue

import "errors"

var (
	ErrFull   = errors.New("write queue full")
	ErrClosed = errors.New("write queue closed")
)
