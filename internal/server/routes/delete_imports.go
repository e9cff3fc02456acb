package routes

import (
	"net/http"

	"github.com/MaxDreger92/matgraph-backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// CancelImportHandler revokes a running import. Cancellation is best effort:
// tracker flags already written by the run are not rolled back, so clients
// must re-check the tracked upload status afterwards.
func CancelImportHandler(c echo.Context) error {
	uploadID := c.Param("id")
	if uploadID == "" {
		return c.JSON(http.StatusBadRequest, importResponse{Message: "Missing upload id"})
	}

	app := c.(*middleware.AppContext).App
	if !app.Runs.Cancel(uploadID) {
		return c.JSON(http.StatusNotFound, importResponse{Message: "No running import for upload"})
	}

	return c.JSON(http.StatusOK, importResponse{Message: "Cancelled", UploadID: uploadID})
}
