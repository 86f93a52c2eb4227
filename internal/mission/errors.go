package mission

import "errors"

var (
	ErrNotFound      = errors.New("mission: not found")
	ErrAlreadyExists = errors.New("mission: already exists")
	ErrInvalidInput  = errors.New("mission: invalid input")
)
