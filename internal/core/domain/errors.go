package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownOption = errors.New("unknown option")
	ErrNegativePrice = errors.New("negative price")
)
