package controllers

import (
	"errors"
	"net/http"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/httputil"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/gin-gonic/gin"
)

type AnomalyListResponse struct {
	Data []models.Anomaly `json:"data"`
}

// RegisterAnomalyRoutes registers the routes for anomalies.
func (co Controller) RegisterAnomalyRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", co.OptionsAnomalyList)
	r.GET("", co.GetAnomalies)
	r.OPTIONS("/:id/resolve", co.OptionsAnomalyResolve)
	r.POST("/:id/resolve", co.ResolveAnomaly)
}

// OptionsAnomalyList returns the allowed HTTP verbs
func (co Controller) OptionsAnomalyList(c *gin.Context) {
	httputil.OptionsGet(c)
}

// OptionsAnomalyResolve returns the allowed HTTP verbs
func (co Controller) OptionsAnomalyResolve(c *gin.Context) {
	httputil.OptionsPost(c)
}

// GetAnomalies returns all unresolved anomalies
func (co Controller) GetAnomalies(c *gin.Context) {
	anomalies, err := anomaly.Open(co.DB.WithContext(c.Request.Context()))
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, AnomalyListResponse{Data: anomalies})
}

// ResolveAnomaly marks an anomaly as handled
func (co Controller) ResolveAnomaly(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		return
	}

	err = anomaly.Resolve(co.DB.WithContext(c.Request.Context()), id)
	if errors.Is(err, anomaly.ErrAlreadyResolved) {
		httputil.NewError(c, http.StatusConflict, err)
		return
	}
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
