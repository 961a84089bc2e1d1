package adapter

import (
	"context"
	"encoding/json"

	"github.com/erocrawler/gmanimato/internal/domain/model"
)

// OutputFile is one artifact reference reported by a render backend or a
// local worker callback.
type OutputFile struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// StatusResponse is the remote backend's view of a job.
type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output *struct {
		Files []OutputFile `json:"files"`
	} `json:"output,omitempty"`
}

// HealthResponse summarises the remote queue.
type HealthResponse struct {
	Jobs struct {
		InQueue    int `json:"inQueue"`
		InProgress int `json:"inProgress"`
		Completed  int `json:"completed"`
		Failed     int `json:"failed"`
	} `json:"jobs"`
	Workers map[string]int `json:"workers,omitempty"`
}

// RenderBackend is the remote GPU queue port: bearer-authenticated
// request/response, no internal retries. Failure policy belongs to callers.
type RenderBackend interface {
	Submit(ctx context.Context, payload json.RawMessage) (string, error)
	Status(ctx context.Context, jobID string) (*StatusResponse, error)
	Retry(ctx context.Context, jobID string) (string, error)
	Health(ctx context.Context) (*HealthResponse, error)
}

// PayloadBuilder renders the opaque backend-specific workflow payload for an
// entry, including the per-entry webhook callback URL. The job core treats
// the result as a black box.
type PayloadBuilder interface {
	Build(entry *model.Entry, callbackURL string) (json.RawMessage, error)
}
