package httputil

import "errors"

var (
	ErrInvalidID = errors.New("an ID specified in the URL was not a valid unsigned integer")
	ErrServer    = errors.New("an error occurred on the server during your request, please contact your server administrator")
)
