package server

import (
	"github.com/MaxDreger92/matgraph-backend/internal/server/middleware"
	"github.com/MaxDreger92/matgraph-backend/internal/server/routes"
	"github.com/MaxDreger92/matgraph-backend/pkg/pipeline"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Import routes, one per pipeline stage plus the full run
	apiRoutes.POST("/imports/labels", routes.ImportHandler(pipeline.StageLabels))
	apiRoutes.POST("/imports/attributes", routes.ImportHandler(pipeline.StageAttributes))
	apiRoutes.POST("/imports/nodes", routes.ImportHandler(pipeline.StageNodes))
	apiRoutes.POST("/imports/relationships", routes.ImportHandler(pipeline.StageRelationships))
	apiRoutes.POST("/imports/graph", routes.ImportHandler(pipeline.StageGraph))
	apiRoutes.DELETE("/imports/:id", routes.CancelImportHandler)
	apiRoutes.GET("/imports/:id/conversation", routes.GetConversationHandler)

	// Header cache routes
	apiRoutes.POST("/labels/validate", routes.ValidateLabelHandler)

	// Graph routes
	apiRoutes.GET("/nodes/:category", routes.GetNodesHandler)
	apiRoutes.POST("/nodes/search", routes.SearchNodesHandler)
}
