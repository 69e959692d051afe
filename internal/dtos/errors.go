package dtos

import "errors"

var (
	ErrUnknownEvent  = errors.New("unknown event type")
	ErrInvalidIntent = errors.New("invalid intent")
)
