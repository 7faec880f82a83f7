package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alvinkoh256/FoodBridge/controllers"
	"github.com/alvinkoh256/FoodBridge/middleware"
)

// RegisterRoutes registers all hub service routes
func RegisterRoutes(r *gin.Engine, hubCtrl *controllers.HubController, resCtrl *controllers.ReservationController) {
	// Public
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "hub-service"})
	})

	hub := r.Group("/hub")
	{
		// Read endpoints for frontends and internal services
		hub.GET("/hubsData", hubCtrl.ListHubs)
		hub.GET("/readyHubsData", hubCtrl.ListReadyHubs)
		hub.GET("/availableHubsData", hubCtrl.ListAvailableHubs)
		hub.GET("/existingItems", hubCtrl.ListExistingItems)
		hub.GET("/:hubId", hubCtrl.GetHub)

		// Mutating endpoints, identity stamped by the api-gateway
		authed := hub.Group("", middleware.RequireIdentity())
		{
			authed.POST("/updateInventory", hubCtrl.UpdateInventory)
			authed.POST("/reserveHub", resCtrl.ReserveHub)
			authed.POST("/unreserveHub", resCtrl.UnreserveHub)
			authed.POST("/collectionComplete", resCtrl.CollectionComplete)
		}
	}

	foodbank := r.Group("/foodbank")
	{
		foodbank.GET("/:foodbankId/reservedHubs", resCtrl.ReservedHubs)
	}
}
