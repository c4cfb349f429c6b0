package content

import "errors"

var (
	ErrNilState        = errors.New("content: state not configured")
	ErrInvalidID       = errors.New("content: content id required")
	ErrInvalidStrategy = errors.New("content: strategy id required")
	ErrInvalidOwner    = errors.New("content: owner address must not be zero")
	ErrContentExists   = errors.New("content: content already registered")
	ErrContentNotFound = errors.New("content: content not registered")
	ErrNotOwner        = errors.New("content: caller is not the content owner")
)
