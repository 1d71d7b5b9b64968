package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/pa-tiq/synthia-api/internal/model"
	"github.com/pa-tiq/synthia-api/internal/queue"
	"github.com/pa-tiq/synthia-api/internal/summarize"
)

type fakeStore struct {
	objects   map[string][]byte
	removed   []string
	summaries map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:   make(map[string][]byte),
		summaries: make(map[string][]byte),
	}
}

func (f *fakeStore) DownloadPending(ctx context.Context, objectKey string) ([]byte, error) {
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectKey)
	}
	return data, nil
}

func (f *fakeStore) RemovePending(ctx context.Context, objectKey string) error {
	f.removed = append(f.removed, objectKey)
	delete(f.objects, objectKey)
	return nil
}

func (f *fakeStore) UploadSummary(ctx context.Context, objectKey string, data []byte) error {
	f.summaries[objectKey] = data
	return nil
}

// fakeLLM echoes enough of the prompt back to assert routing.
type fakeLLM struct {
	lastModel  string
	lastPrompt string
	lastImages []string
	response   string
	err        error
}

func (f *fakeLLM) Generate(ctx context.Context, model, prompt string, images []string) (string, error) {
	f.lastModel = model
	f.lastPrompt = prompt
	f.lastImages = images
	return f.response, f.err
}

type fakeTranscriber struct {
	transcript string
	err        error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, data []byte, fileName string) (string, error) {
	return f.transcript, f.err
}

func newTestProcessor(store *fakeStore, llm *fakeLLM, tr *fakeTranscriber) *Processor {
	return NewProcessor(store, summarize.New(llm, "text-model", "vision-model"), tr)
}

func TestProcessText(t *testing.T) {
	t.Parallel()
	llm := &fakeLLM{response: "short summary"}
	p := newTestProcessor(newFakeStore(), llm, &fakeTranscriber{})

	result, err := p.processText(context.Background(), queue.TextPayload{
		Text:           "hello world",
		TargetLanguage: "en",
	})
	if err != nil {
		t.Fatalf("processText: %v", err)
	}
	if result.Summary != "short summary" {
		t.Fatalf("summary=%q", result.Summary)
	}
	if result.FileType != model.FileTypeText || result.FileName != "direct_input.txt" {
		t.Fatalf("unexpected result metadata: %+v", result)
	}
	if llm.lastModel != "text-model" {
		t.Fatalf("model=%q, want text-model", llm.lastModel)
	}
}

func TestProcessFile_TextUpload(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.objects["uploads/j1/notes.txt"] = []byte("the uploaded text")
	llm := &fakeLLM{response: "summarized"}
	p := newTestProcessor(store, llm, &fakeTranscriber{})

	result, err := p.processFile(context.Background(), queue.FilePayload{
		ObjectKey:      "uploads/j1/notes.txt",
		FileName:       "notes.txt",
		FileType:       model.FileTypeText,
		TargetLanguage: "pt-br",
	})
	if err != nil {
		t.Fatalf("processFile: %v", err)
	}
	if result.Summary != "summarized" {
		t.Fatalf("summary=%q", result.Summary)
	}
	if len(store.removed) != 1 || store.removed[0] != "uploads/j1/notes.txt" {
		t.Fatalf("upload object not removed: %v", store.removed)
	}
}

func TestProcessFile_AudioGoesThroughTranscriber(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.objects["uploads/j2/talk.ogg"] = []byte("ogg bytes")
	llm := &fakeLLM{response: "audio summary"}
	p := newTestProcessor(store, llm, &fakeTranscriber{transcript: "the spoken words"})

	result, err := p.processFile(context.Background(), queue.FilePayload{
		ObjectKey:      "uploads/j2/talk.ogg",
		FileName:       "talk.ogg",
		FileType:       model.FileTypeAudio,
		TargetLanguage: "en",
	})
	if err != nil {
		t.Fatalf("processFile: %v", err)
	}
	if result.Summary != "audio summary" {
		t.Fatalf("summary=%q", result.Summary)
	}
}

func TestProcessFile_RemovesObjectOnFailure(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.objects["uploads/j3/pic.png"] = []byte("png bytes")
	llm := &fakeLLM{err: errors.New("model unavailable")}
	p := newTestProcessor(store, llm, &fakeTranscriber{})

	_, err := p.processFile(context.Background(), queue.FilePayload{
		ObjectKey: "uploads/j3/pic.png",
		FileName:  "pic.png",
		FileType:  model.FileTypeImage,
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("summarization failures must not retry, got %v", err)
	}
	if len(store.removed) != 1 {
		t.Fatalf("upload object must be removed on failure too: %v", store.removed)
	}
}

func TestProcessFile_UnsupportedType(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.objects["uploads/j4/x.bin"] = []byte("bytes")
	p := newTestProcessor(store, &fakeLLM{}, &fakeTranscriber{})

	_, err := p.processFile(context.Background(), queue.FilePayload{
		ObjectKey: "uploads/j4/x.bin",
		FileType:  model.FileType("binary"),
	})
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err=%v, want SkipRetry for unsupported type", err)
	}
}
