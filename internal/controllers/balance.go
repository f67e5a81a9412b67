package controllers

import (
	"net/http"

	"github.com/ImShyMike/hcb/internal/httputil"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/gin-gonic/gin"
)

type BalanceResponse struct {
	Data Balance `json:"data"`
}

type Balance struct {
	EventID uint  `json:"eventId" example:"12"`
	Amount  int64 `json:"amount" example:"465000"` // Available balance in cents
}

// RegisterEventRoutes registers the routes for events.
func (co Controller) RegisterEventRoutes(r *gin.RouterGroup) {
	r.OPTIONS("/:id/available-balance", co.OptionsAvailableBalance)
	r.GET("/:id/available-balance", co.GetAvailableBalance)
}

// OptionsAvailableBalance returns the allowed HTTP verbs
func (co Controller) OptionsAvailableBalance(c *gin.Context) {
	httputil.OptionsGet(c)
}

// GetAvailableBalance returns the balance card authorizations are approved against
func (co Controller) GetAvailableBalance(c *gin.Context) {
	id, err := httputil.ParseID(c, "id")
	if err != nil {
		return
	}

	db := co.DB.WithContext(c.Request.Context())

	var event models.Event
	if err := db.First(&event, id).Error; err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	amount, err := models.AvailableBalance(db, event.ID)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{Data: Balance{EventID: event.ID, Amount: amount}})
}
