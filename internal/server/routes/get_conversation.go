package routes

import (
	"net/http"

	"github.com/MaxDreger92/matgraph-backend/internal/server/middleware"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// GetConversationHandler returns the correction conversation of one import
// for manual review of degraded results.
func GetConversationHandler(c echo.Context) error {
	uploadID := c.Param("id")
	if uploadID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing upload id"})
	}

	app := c.(*middleware.AppContext).App
	log := store.NewPGStore(app.DBConn)

	turns, err := log.Turns(c.Request().Context(), uploadID)
	if err != nil {
		logger.Error("Failed to read conversation", "upload", uploadID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{"turns": turns})
}
