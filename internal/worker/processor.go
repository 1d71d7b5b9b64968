// Package worker executes summarization jobs consumed from the shared queue.
// It is the only layer that mutates job state, and it does so exclusively
// through the queue backend.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/pa-tiq/synthia-api/internal/model"
	"github.com/pa-tiq/synthia-api/internal/queue"
	"github.com/pa-tiq/synthia-api/internal/summarize"
)

// ObjectStore is the slice of s3storage the processor needs.
type ObjectStore interface {
	DownloadPending(ctx context.Context, objectKey string) ([]byte, error)
	RemovePending(ctx context.Context, objectKey string) error
	UploadSummary(ctx context.Context, objectKey string, data []byte) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store       ObjectStore
	summarizer  *summarize.Summarizer
	transcriber summarize.Transcriber
}

// NewProcessor constructs a worker processor.
func NewProcessor(store ObjectStore, summarizer *summarize.Summarizer, transcriber summarize.Transcriber) *Processor {
	return &Processor{
		store:       store,
		summarizer:  summarizer,
		transcriber: transcriber,
	}
}

// Handler registers both summarization task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.SummarizeFileTask, p.handleFile)
	mux.HandleFunc(queue.SummarizeTextTask, p.handleText)
	return mux
}

func (p *Processor) handleFile(ctx context.Context, task *asynq.Task) error {
	var payload queue.FilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	result, err := p.processFile(ctx, payload)
	if err != nil {
		return err
	}
	return p.finish(ctx, task, result)
}

// processFile downloads the upload, dispatches on file type, and guarantees
// the input object is removed once downloaded. Retries would re-enqueue a job
// whose input is gone, so failures past the download are terminal.
func (p *Processor) processFile(ctx context.Context, payload queue.FilePayload) (model.SummaryResult, error) {
	data, err := p.store.DownloadPending(ctx, payload.ObjectKey)
	if err != nil {
		return model.SummaryResult{}, fmt.Errorf("fetch upload: %w", err)
	}
	defer func() {
		if err := p.store.RemovePending(context.WithoutCancel(ctx), payload.ObjectKey); err != nil {
			log.Printf("remove upload %s: %v", payload.ObjectKey, err)
		}
	}()

	var summary string
	switch payload.FileType {
	case model.FileTypePDF:
		summary, err = p.summarizer.PDF(ctx, data, payload.TargetLanguage)
	case model.FileTypeImage:
		summary, err = p.summarizer.Image(ctx, data, payload.TargetLanguage)
	case model.FileTypeAudio:
		var transcript string
		transcript, err = p.transcriber.Transcribe(ctx, data, payload.FileName)
		if err == nil {
			summary, err = p.summarizer.Text(ctx, transcript, payload.TargetLanguage)
		}
	case model.FileTypeText:
		summary, err = p.summarizer.Text(ctx, string(data), payload.TargetLanguage)
	default:
		return model.SummaryResult{}, fmt.Errorf("unsupported file type %q: %w", payload.FileType, asynq.SkipRetry)
	}
	if err != nil {
		return model.SummaryResult{}, fmt.Errorf("summarize %s: %v: %w", payload.FileType, err, asynq.SkipRetry)
	}
	return model.SummaryResult{
		Summary:  summary,
		FileType: payload.FileType,
		FileName: payload.FileName,
	}, nil
}

func (p *Processor) handleText(ctx context.Context, task *asynq.Task) error {
	var payload queue.TextPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	result, err := p.processText(ctx, payload)
	if err != nil {
		return err
	}
	return p.finish(ctx, task, result)
}

func (p *Processor) processText(ctx context.Context, payload queue.TextPayload) (model.SummaryResult, error) {
	summary, err := p.summarizer.Text(ctx, payload.Text, payload.TargetLanguage)
	if err != nil {
		return model.SummaryResult{}, fmt.Errorf("summarize text: %w", err)
	}
	return model.SummaryResult{
		Summary:  summary,
		FileType: model.FileTypeText,
		FileName: "direct_input.txt",
	}, nil
}

// finish persists the summary artifact and writes the result record the
// status resolver reads back.
func (p *Processor) finish(ctx context.Context, task *asynq.Task, result model.SummaryResult) error {
	jobID, _ := asynq.GetTaskID(ctx)
	if err := p.store.UploadSummary(ctx, jobID+".txt", []byte(result.Summary)); err != nil {
		log.Printf("store summary artifact for %s: %v", jobID, err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if _, err := task.ResultWriter().Write(data); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	log.Printf("job %s completed (%d bytes of summary)", jobID, len(result.Summary))
	return nil
}
