// Package model contains simple struct definitions shared across packages.
package model

// FileType enumerates the upload kinds the summarizer understands.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeAudio FileType = "audio"
	FileTypeImage FileType = "image"
	FileTypeText  FileType = "text"
)

// Valid reports whether ft is one of the supported upload kinds.
func (ft FileType) Valid() bool {
	switch ft {
	case FileTypePDF, FileTypeAudio, FileTypeImage, FileTypeText:
		return true
	}
	return false
}

// JobStatus is the client-visible lifecycle of a summarization job. Queued
// work is reported as processing; only completed and failed are terminal.
type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// JobStatusView is what GET /result/{job_id} returns. Summary is present only
// when completed, Error only when failed.
type JobStatusView struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Summary string    `json:"summary,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// SummaryResult is the record a worker writes against a finished job.
type SummaryResult struct {
	Summary  string   `json:"summary"`
	FileType FileType `json:"file_type"`
	FileName string   `json:"file_name"`
}
