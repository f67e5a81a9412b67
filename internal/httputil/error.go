package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ImShyMike/hcb/internal/httperror"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorHandler writes the response for err.
func ErrorHandler(c *gin.Context, err error) {
	var numErr *strconv.NumError

	switch {
	case errors.Is(err, models.ErrResourceNotFound):
		NewError(c, http.StatusNotFound, err)

	case errors.As(err, &numErr):
		NewError(c, http.StatusBadRequest, ErrInvalidID)

	default:
		log.Error().Str("request-id", requestid.Get(c)).Msgf("%T: %v", err, err.Error())
		NewError(c, http.StatusInternalServerError, fmt.Errorf("%w. The request id is '%v', send this to your server administrator to help them find the problem", ErrServer, requestid.Get(c)))
	}
}

// NewError aborts the request with status and err as body.
func NewError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, httperror.New(err))
}
