package routes

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MaxDreger92/matgraph-backend/internal/queue"
	"github.com/MaxDreger92/matgraph-backend/internal/server/middleware"
	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/pipeline"

	"github.com/labstack/echo/v4"
)

type importBody struct {
	UploadID string `json:"uploadId" validate:"required"`
	FileID   string `json:"fileId" validate:"required"`
	FilePath string `json:"filePath" validate:"required"`
	Context  string `json:"context"`
}

type importResponse struct {
	Message  string `json:"message"`
	UploadID string `json:"uploadId,omitempty"`
}

// ImportHandler returns the handler for one pipeline stage endpoint. The
// request is validated and dispatched; the response returns before the run
// starts. With DISPATCH_MODE=queue the import goes through RabbitMQ to the
// worker instead of the in-process pool.
func ImportHandler(stage string) echo.HandlerFunc {
	return func(c echo.Context) error {
		data := new(importBody)
		if err := c.Bind(data); err != nil {
			return c.JSON(http.StatusBadRequest, importResponse{Message: "Invalid request body"})
		}
		if err := c.Validate(data); err != nil {
			return c.JSON(http.StatusBadRequest, importResponse{Message: "Invalid request body"})
		}

		app := c.(*middleware.AppContext).App
		req := pipeline.Request{
			UploadID: data.UploadID,
			FileID:   data.FileID,
			FilePath: data.FilePath,
			Context:  data.Context,
			Stage:    stage,
		}

		if util.GetEnvString("DISPATCH_MODE", "pool") == "queue" {
			msg, err := json.Marshal(req)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, importResponse{Message: "Internal server error"})
			}
			if err := queue.PublishFIFO(app.Queue, queue.ImportQueue, msg); err != nil {
				logger.Error("Failed to publish import", "upload", data.UploadID, "err", err)
				return c.JSON(http.StatusInternalServerError, importResponse{Message: "Failed to dispatch import"})
			}
			return c.JSON(http.StatusAccepted, importResponse{Message: "Dispatched", UploadID: data.UploadID})
		}

		err := app.Runs.Dispatch(data.UploadID, func(ctx context.Context) {
			if err := app.Pipeline.Run(ctx, req); err != nil {
				logger.Error("Import run failed", "upload", data.UploadID, "err", err)
			}
		})
		if err != nil {
			return c.JSON(http.StatusConflict, importResponse{Message: err.Error()})
		}

		return c.JSON(http.StatusAccepted, importResponse{Message: "Dispatched", UploadID: data.UploadID})
	}
}
