package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alvinkoh256/FoodBridge/models"
	"github.com/alvinkoh256/FoodBridge/services"
)

// ReservationController handles HTTP requests for the reservation lifecycle
type ReservationController struct {
	service *services.ReservationService
}

// NewReservationController creates a new ReservationController
func NewReservationController(service *services.ReservationService) *ReservationController {
	return &ReservationController{service: service}
}

// ReserveHub reserves a hub for a foodbank
// POST /hub/reserveHub
func (rc *ReservationController) ReserveHub(c *gin.Context) {
	var req models.ReserveHubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	auditMutation(c, "reserveHub", req.HubID)

	result, err := rc.service.Reserve(c.Request.Context(), req.HubID, req.FoodbankID)
	if err != nil {
		respondError(c, err, "Failed to reserve hub")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Hub reserved successfully",
		"reservation": result,
	})
}

// UnreserveHub cancels a foodbank's reservation and frees the hub
// POST /hub/unreserveHub
func (rc *ReservationController) UnreserveHub(c *gin.Context) {
	var req models.HubFoodbankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	auditMutation(c, "unreserveHub", req.HubID)

	if err := rc.service.Unreserve(c.Request.Context(), req.HubID, req.FoodbankID); err != nil {
		respondError(c, err, "Failed to unreserve hub")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Hub unreserved successfully",
		"hubID":   req.HubID,
	})
}

// CollectionComplete settles a reservation after pickup
// POST /hub/collectionComplete
func (rc *ReservationController) CollectionComplete(c *gin.Context) {
	var req models.HubFoodbankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	auditMutation(c, "collectionComplete", req.HubID)

	result, err := rc.service.CollectionComplete(c.Request.Context(), req.HubID, req.FoodbankID)
	if err != nil {
		respondError(c, err, "Failed to complete collection")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Collection completed successfully",
		"collection": result,
	})
}

// ReservedHubs lists a foodbank's open reservations with hub details
// GET /foodbank/:foodbankId/reservedHubs
func (rc *ReservationController) ReservedHubs(c *gin.Context) {
	foodbankID := c.Param("foodbankId")
	if foodbankID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing foodbank ID"})
		return
	}

	hubs, err := rc.service.ReservedHubs(c.Request.Context(), foodbankID)
	if err != nil {
		respondError(c, err, "Failed to fetch reserved hubs")
		return
	}

	c.JSON(http.StatusOK, hubs)
}
