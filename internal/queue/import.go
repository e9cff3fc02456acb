package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MaxDreger92/matgraph-backend/pkg/pipeline"
)

// ImportMessage is the wire form of one dispatched table import. Stage
// carries the stop-after marker of stage-scoped imports and must survive the
// round trip, or a queued partial run falls through to the full pipeline.
type ImportMessage struct {
	UploadID string `json:"uploadId"`
	FileID   string `json:"fileId"`
	FilePath string `json:"filePath"`
	Context  string `json:"context"`
	Stage    string `json:"stage,omitempty"`
}

// ProcessImportMessage decodes one import message and runs the pipeline on
// it. The returned error routes the delivery to the retry or dead-letter
// queue.
func ProcessImportMessage(
	ctx context.Context,
	p *pipeline.Pipeline,
	msg string,
) error {
	data := new(ImportMessage)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to decode import message: %w", err)
	}
	if data.UploadID == "" || data.FilePath == "" {
		return fmt.Errorf("import message misses uploadId or filePath")
	}

	return p.Run(ctx, pipeline.Request{
		UploadID: data.UploadID,
		FileID:   data.FileID,
		FilePath: data.FilePath,
		Context:  data.Context,
		Stage:    data.Stage,
	})
}
