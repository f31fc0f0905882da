package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrDeleteFailed   = errors.New("board delete failed")
	ErrInsertFailed   = errors.New("board insert failed")
	ErrInvalidTable   = errors.New("invalid table name")
	ErrUnknownDriver  = errors.New("unknown store driver")
	ErrRemoteResponse = errors.New("unexpected store response")
)
