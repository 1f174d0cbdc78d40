package loader

import (
	"time"

	"github.com/dgnsrekt/graphview/internal/render"
)

const (
	EventStarted    = "started"
	EventRendered   = "rendered"
	EventFailed     = "failed"
	EventSuperseded = "superseded"
)

// Event is one step of a load.
type Event struct {
	Type       string         `json:"type"`
	Scope      string         `json:"scope,omitempty"`
	TargetID   string         `json:"target_id"`
	URI        string         `json:"uri"`
	PageLength int            `json:"page_length,omitempty"`
	Seq        uint64         `json:"seq"`
	Code       string         `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Result     *render.Result `json:"result,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Time       time.Time      `json:"time"`
}
