package main

import (
	"time"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/store"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command     string            `json:"command"`
	Workspace   string            `json:"workspace"`
	OutputDir   string            `json:"output_dir,omitempty"`
	HasErrors   bool              `json:"has_errors"`
	Build       *CLIBuild         `json:"build,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// CLIBuild is a JSON-friendly manifest build record.
type CLIBuild struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	FilesBuilt   int        `json:"files_built"`
	FilesSkipped int        `json:"files_skipped"`
}

func newCLIBuild(b *store.Build) *CLIBuild {
	if b == nil {
		return nil
	}
	return &CLIBuild{
		ID:           b.ID,
		Status:       b.Status,
		StartedAt:    b.StartedAt,
		FinishedAt:   b.FinishedAt,
		FilesBuilt:   b.FilesBuilt,
		FilesSkipped: b.FilesSkipped,
	}
}
