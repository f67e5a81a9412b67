package router

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/ImShyMike/hcb/internal/controllers"
	"github.com/ImShyMike/hcb/internal/httputil"
	"github.com/ImShyMike/hcb/internal/metrics"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// This is set at build time with -ldflags "-X github.com/ImShyMike/hcb/internal/router.version=...".
var version = "0.0.0"

// Version returns the version of the engine.
func Version() string {
	return version
}

// Config creates the router with all middlewares. The returned teardown
// function unregisters the metrics and must be called when the router is
// not used anymore.
func Config(url *url.URL) (*gin.Engine, func(), error) {
	teardown := func() {
		if !metrics.Unregister() {
			log.Error().Msg("Could not unregister Prometheus metrics")
		}
	}

	err := metrics.Register()
	if err != nil {
		metrics.Unregister()
		return nil, func() {}, err
	}

	r := gin.New()

	// Don’t process X-Forwarded-For header as we do not do anything with
	// client IPs
	r.ForwardedByClientIP = false

	// Send a HTTP 405 (Method not allowed) for all paths where there is
	// a handler, but not for the specific method used
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(URLMiddleware(url))
	r.Use(MetricsMiddleware())
	r.NoMethod(func(c *gin.Context) {
		httputil.NewError(c, http.StatusMethodNotAllowed, errors.New("this HTTP method is not allowed for the endpoint you called"))
	})
	r.NoRoute(func(c *gin.Context) {
		httputil.NewError(c, http.StatusNotFound, errors.New("there is no resource for the path you requested"))
	})
	r.Use(logger.SetLogger(
		logger.WithDefaultLevel(zerolog.InfoLevel),
		logger.WithClientErrorLevel(zerolog.InfoLevel),
		logger.WithServerErrorLevel(zerolog.ErrorLevel),
		logger.WithLogger(func(c *gin.Context, logger zerolog.Logger) zerolog.Logger {
			return logger.With().
				Str("request-id", requestid.Get(c)).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Int("status", c.Writer.Status()).
				Int("size", c.Writer.Size()).
				Str("user-agent", c.Request.UserAgent()).
				Logger()
		})))

	// Disable the gin debug route printing as it clutters logs (and test logs)
	gin.DebugPrintRouteFunc = func(_, _, _ string, _ int) {}

	// Don’t trust any proxy. We do not process any client IPs,
	// therefore we don’t need to trust anyone here.
	_ = r.SetTrustedProxies([]string{})

	log.Info().Str("version", version).Msg("Router")

	return r, teardown, nil
}

// AttachRoutes attaches the routes to the router group that is passed in.
func AttachRoutes(co controllers.Controller, group *gin.RouterGroup, enablePprof bool) {
	group.GET("", GetRoot)
	group.OPTIONS("", OptionsRoot)
	group.GET("/version", GetVersion)
	group.OPTIONS("/version", OptionsVersion)
	group.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if enablePprof {
		pprof.RouteRegister(group, "debug/pprof")
	}

	co.RegisterHealthzRoutes(group.Group("/healthz"))

	v1 := group.Group("/v1")
	co.RegisterEventRoutes(v1.Group("/events"))
	co.RegisterAnomalyRoutes(v1.Group("/anomalies"))
}

type RootResponse struct {
	Links RootLinks `json:"links"`
}

type RootLinks struct {
	Healthz   string `json:"healthz" example:"https://example.com/api/healthz"`
	Version   string `json:"version" example:"https://example.com/api/version"`
	Metrics   string `json:"metrics" example:"https://example.com/api/metrics"`
	Anomalies string `json:"anomalies" example:"https://example.com/api/v1/anomalies"`
}

// GetRoot returns the link list for the API root
func GetRoot(c *gin.Context) {
	url := c.GetString(contextURL)

	c.JSON(http.StatusOK, RootResponse{
		Links: RootLinks{
			Healthz:   url + "/healthz",
			Version:   url + "/version",
			Metrics:   url + "/metrics",
			Anomalies: url + "/v1/anomalies",
		},
	})
}

type VersionResponse struct {
	Data VersionObject `json:"data"`
}

type VersionObject struct {
	Version string `json:"version" example:"1.1.0"`
}

// GetVersion returns the version object
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, VersionResponse{
		Data: VersionObject{
			Version: version,
		},
	})
}

// OptionsRoot returns the allowed HTTP methods
func OptionsRoot(c *gin.Context) {
	httputil.OptionsGet(c)
}

// OptionsVersion returns the allowed HTTP methods
func OptionsVersion(c *gin.Context) {
	httputil.OptionsGet(c)
}
