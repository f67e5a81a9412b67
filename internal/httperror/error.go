package httperror

// Error is the body of all error responses.
type Error struct {
	Message string `json:"error" example:"the event could not be found"`
}

func New(e error) Error {
	return Error{
		Message: e.Error(),
	}
}
