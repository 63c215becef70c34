package apperrors

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrNoJoinPath = errors.New("no join path")
)
