package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/logger"
	"github.com/alvinkoh256/FoodBridge/middleware"
	"github.com/alvinkoh256/FoodBridge/models"
	"github.com/alvinkoh256/FoodBridge/services"
)

// HubController handles HTTP requests for hubs and their inventory
type HubController struct {
	inventory *services.InventoryService
	catalog   *services.CatalogService
}

// NewHubController creates a new HubController
func NewHubController(inventory *services.InventoryService, catalog *services.CatalogService) *HubController {
	return &HubController{inventory: inventory, catalog: catalog}
}

// respondError writes a ServiceError with its own status and body, or a
// generic 500 with the fallback message for anything else.
func respondError(c *gin.Context, err error, fallback string) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		c.JSON(svcErr.StatusCode, svcErr)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

// auditMutation records which gateway identity performed a mutating call.
func auditMutation(c *gin.Context, action, hubID string) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return
	}
	role, _ := middleware.GetRole(c)
	logger.Log.Info("mutation requested",
		zap.String("action", action),
		zap.String("hub_id", hubID),
		zap.String("user_id", userID),
		zap.String("role", role),
	)
}

// GetHub returns a single hub with its full inventory
// GET /hub/:hubId
func (hc *HubController) GetHub(c *gin.Context) {
	hubID := c.Param("hubId")
	if hubID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing hub ID"})
		return
	}

	hub, err := hc.inventory.GetHubData(c.Request.Context(), hubID)
	if err != nil {
		respondError(c, err, "Failed to fetch hub")
		return
	}

	c.JSON(http.StatusOK, hub)
}

// ListHubs returns every hub with its inventory
// GET /hub/hubsData
func (hc *HubController) ListHubs(c *gin.Context) {
	hubs, err := hc.inventory.ListHubsData(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch hubs")
		return
	}

	c.JSON(http.StatusOK, hubs)
}

// ListReadyHubs returns hubs at or above the collection weight threshold
// GET /hub/readyHubsData
func (hc *HubController) ListReadyHubs(c *gin.Context) {
	hubs, err := hc.inventory.ListReadyHubs(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch ready hubs")
		return
	}

	c.JSON(http.StatusOK, hubs)
}

// ListAvailableHubs returns all hubs that are not reserved, ready or not
// GET /hub/availableHubsData
func (hc *HubController) ListAvailableHubs(c *gin.Context) {
	hubs, err := hc.inventory.ListAvailableHubs(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch available hubs")
		return
	}

	c.JSON(http.StatusOK, hubs)
}

// ListExistingItems returns the item catalog for drop-off forms
// GET /hub/existingItems
func (hc *HubController) ListExistingItems(c *gin.Context) {
	items, err := hc.catalog.ListItems(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch items")
		return
	}

	c.JSON(http.StatusOK, items)
}

// UpdateInventory records a volunteer drop-off at a hub
// POST /hub/updateInventory
func (hc *HubController) UpdateInventory(c *gin.Context) {
	var req models.UpdateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if len(req.Items) == 0 && len(req.NewItems) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Drop-off must contain at least one item"})
		return
	}
	auditMutation(c, "updateInventory", req.HubID)

	hub, err := hc.inventory.RecordDropOff(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to update inventory")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Inventory updated successfully",
		"hubData": hub,
	})
}
