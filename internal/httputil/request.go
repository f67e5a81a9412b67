package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// RequestHost returns the scheme, host and prefix the client used.
//
// The scheme defaults to http and is https if the x-forwarded-proto header
// says so. Behind a reverse proxy setting x-forwarded-host, the
// x-forwarded-prefix header is used as prefix, defaulting to "/api".
func RequestHost(c *gin.Context) string {
	scheme := "http"
	if c.Request.Header.Get("x-forwarded-proto") == "https" {
		scheme = "https"
	}

	host := c.Request.Host
	var forwardedPrefix string

	if xForwardedHost := c.Request.Header.Get("x-forwarded-host"); xForwardedHost != "" {
		host = xForwardedHost

		forwardedPrefix = c.Request.Header.Get("x-forwarded-prefix")
		if forwardedPrefix == "" {
			forwardedPrefix = "/api"
		}
	}

	return scheme + "://" + host + forwardedPrefix
}

// ParseID parses the URL parameter param as ID. On failure, the error
// response has already been written.
func ParseID(c *gin.Context, param string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Param(param), 10, 0)
	if err != nil {
		ErrorHandler(c, err)
		return 0, err
	}

	return uint(parsed), nil
}
