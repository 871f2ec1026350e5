package project

import (
	"time"

	"github.com/KaramelBytes/lamap-cli/internal/sample"
)

// SampleRef holds metadata for a map registered in a project.
type SampleRef struct {
	ID          string                       `json:"id"`
	Path        string                       `json:"path"`
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Rows        int                          `json:"rows"`
	Analytes    []string                     `json:"analytes"`
	Attrs       map[string]sample.ColumnAttr `json:"attrs,omitempty"`
	Summary     string                       `json:"summary,omitempty"`
	History     []Step                       `json:"history,omitempty"`
	AddedAt     time.Time                    `json:"added_at"`
}

// Step records one processing command applied to a sample.
type Step struct {
	Command string    `json:"command"`
	Detail  string    `json:"detail,omitempty"`
	Output  string    `json:"output,omitempty"`
	At      time.Time `json:"at"`
}
