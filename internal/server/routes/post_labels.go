package routes

import (
	"net/http"

	"github.com/MaxDreger92/matgraph-backend/internal/server/middleware"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// ValidateLabelHandler marks a cached header classification as human
// validated. A validated entry is never overwritten by later model guesses.
func ValidateLabelHandler(c echo.Context) error {
	type validateBody struct {
		Header string `json:"header" validate:"required"`
	}

	data := new(validateBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	cache := store.NewPGStore(app.DBConn)

	flipped, err := cache.Validate(c.Request().Context(), data.Header)
	if err != nil {
		logger.Error("Failed to validate header entry", "header", data.Header, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	if !flipped {
		return c.JSON(http.StatusConflict, map[string]string{"message": "Entry is missing or already validated"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Validated"})
}
