package model

import "time"

// Run statuses stored in the ledger
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// StageReport counts the records entering a cleaning stage and the ones it rejected
type StageReport struct {
	Stage    string `json:"stage"`
	In       int    `json:"in"`
	Rejected int    `json:"rejected"`
}

// CleanReport collects stage reports for one batch
type CleanReport struct {
	Input  int           `json:"input"`
	Output int           `json:"output"`
	Stages []StageReport `json:"stages"`
}

// Add appends a stage report
func (r *CleanReport) Add(stage string, in, rejected int) {
	r.Stages = append(r.Stages, StageReport{Stage: stage, In: in, Rejected: rejected})
}

// Rejected returns the total number of rejected records
func (r CleanReport) Rejected() int {
	total := 0
	for _, s := range r.Stages {
		total += s.Rejected
	}
	return total
}

// WriteStats tracks insert outcomes for one collection
type WriteStats struct {
	Collection string `json:"collection"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
}

// RebuildStats tracks the outcome of a view rebuild
type RebuildStats struct {
	Dropped    int `json:"dropped"`
	Missing    int `json:"missing"`
	DropErrors int `json:"drop_errors"`
	Created    int `json:"created"`
}

// RunSummary describes one pipeline run end to end
type RunSummary struct {
	RunID      string       `json:"run_id"`
	Status     string       `json:"status"`
	Sources    []string     `json:"sources"`
	Ingested   int          `json:"ingested"`
	Clean      CleanReport  `json:"clean"`
	Movies     WriteStats   `json:"movies"`
	Directors  WriteStats   `json:"directors"`
	Views      RebuildStats `json:"views"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}
