package routes

import (
	"net/http"

	"github.com/MaxDreger92/matgraph-backend/internal/server/middleware"
	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// GetNodesHandler lists the stored nodes of one category.
func GetNodesHandler(c echo.Context) error {
	category, ok := schema.ParseCategory(c.Param("category"))
	if !ok || !category.Extractable() {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Unknown category"})
	}

	app := c.(*middleware.AppContext).App
	graph := store.NewPGStore(app.DBConn)

	nodes, err := graph.NodesByLabel(c.Request().Context(), category)
	if err != nil {
		logger.Error("Failed to list nodes", "category", category, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{"nodes": nodes})
}

// SearchNodesHandler finds stored nodes similar to a free-text query via
// embedding nearest-neighbor search.
func SearchNodesHandler(c echo.Context) error {
	type searchBody struct {
		Category string `json:"category" validate:"required"`
		Text     string `json:"text" validate:"required"`
		K        int    `json:"k"`
	}

	data := new(searchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	category, ok := schema.ParseCategory(data.Category)
	if !ok || !category.Extractable() {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Unknown category"})
	}
	if data.K <= 0 {
		data.K = int(util.GetEnvNumeric("NODE_SEARCH_TOP_K", 10))
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	vector, err := app.AiClient.GenerateEmbedding(ctx, []byte(data.Text))
	if err != nil {
		logger.Error("Failed to embed search query", "err", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"message": "Embedding provider unavailable"})
	}

	graph := store.NewPGStore(app.DBConn)
	matches, err := graph.QueryNearestByEmbedding(ctx, category, vector, data.K)
	if err != nil {
		logger.Error("Failed to search nodes", "category", category, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{"matches": matches})
}
