package router

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ImShyMike/hcb/internal/httputil"
	"github.com/ImShyMike/hcb/internal/metrics"
	"github.com/gin-gonic/gin"
)

const contextURL = "baseURL"

// URLMiddleware stores the base URL of the API in the context. Without a
// configured URL, the URL the client used is stored.
func URLMiddleware(url *url.URL) gin.HandlerFunc {
	return func(c *gin.Context) {
		if url != nil && url.String() != "" {
			c.Set(contextURL, strings.TrimSuffix(url.String(), "/"))
		} else {
			c.Set(contextURL, httputil.RequestHost(c))
		}
		c.Next()
	}
}

// MetricsMiddleware updates Prometheus metrics.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		elapsed := float64(time.Since(start)) / float64(time.Second)

		// Replace all URL parameters with their name to reduce cardinality
		// https://prometheus.io/docs/practices/naming/#labels
		url := c.Request.URL.Path
		for _, p := range c.Params {
			url = strings.Replace(url, p.Value, fmt.Sprintf(":%s", p.Key), 1)
		}

		metrics.RequestDuration.WithLabelValues(status, c.Request.Method, url).Observe(elapsed)
		metrics.RequestCount.WithLabelValues(status, c.Request.Method, url).Inc()
	}
}
