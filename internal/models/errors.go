package models

import (
	"errors"
)

var (
	ErrGeneral          = errors.New("an error occurred in the database")
	ErrResourceNotFound = errors.New("there is no")
)
