package render

import (
	"encoding/json"

	"github.com/erocrawler/gmanimato/internal/domain/model"
	"github.com/erocrawler/gmanimato/internal/domain/ports/adapter"
)

var _ adapter.PayloadBuilder = (*PayloadBuilder)(nil)

// PayloadBuilder renders the workflow execution payload from an entry's
// captured parameters. The routing core treats the result as opaque; both
// local workers and the remote backend accept the same shape.
type PayloadBuilder struct{}

func NewPayloadBuilder() *PayloadBuilder { return &PayloadBuilder{} }

type workflowInput struct {
	EntryID    string `json:"entry_id"`
	WorkflowID string `json:"workflow_id"`
	Steps      int    `json:"iteration_steps"`
	Duration   int    `json:"video_duration"`
	Resolution string `json:"video_resolution"`
	Lora       string `json:"lora_weights,omitempty"`
	Seed       int64  `json:"seed"`
	Webhook    string `json:"webhook"`
}

func (b *PayloadBuilder) Build(entry *model.Entry, callbackURL string) (json.RawMessage, error) {
	return json.Marshal(struct {
		Input workflowInput `json:"input"`
	}{Input: workflowInput{
		EntryID:    entry.ID,
		WorkflowID: entry.WorkflowID,
		Steps:      entry.IterationSteps,
		Duration:   entry.VideoDuration,
		Resolution: entry.VideoResolution,
		Lora:       entry.LoraWeights,
		Seed:       entry.Seed,
		Webhook:    callbackURL,
	}})
}
