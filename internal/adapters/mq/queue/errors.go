package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull = errors.New("task queue full")
	ErrStopped   = errors.New("dispatcher stopped")
)
