package summarize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pa-tiq/synthia-api/internal/tempfiles"
)

// Transcriber converts audio bytes to a transcript. Implemented by shelling
// out to the whisper CLI; tests substitute a fake.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, fileName string) (string, error)
}

// WhisperTranscriber runs ffmpeg (for non-wav inputs) and the whisper CLI in
// a scratch directory. Every intermediate file is removed before returning,
// success or not.
type WhisperTranscriber struct {
	model string
	temp  *tempfiles.Manager
}

// NewWhisperTranscriber constructs a WhisperTranscriber using the named
// whisper model size.
func NewWhisperTranscriber(model string, temp *tempfiles.Manager) *WhisperTranscriber {
	return &WhisperTranscriber{model: model, temp: temp}
}

// Transcribe writes the audio to scratch space, converts it to 16 kHz mono
// wav when needed, and returns whisper's transcript.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, data []byte, fileName string) (string, error) {
	audioPath := t.temp.Path(fileName)
	if err := os.WriteFile(audioPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write audio scratch file: %w", err)
	}
	defer os.Remove(audioPath)

	if !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		wavPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".wav"
		if err := runCommand(ctx, "ffmpeg",
			"-i", audioPath,
			"-ar", "16000",
			"-ac", "1",
			"-y", wavPath,
		); err != nil {
			return "", fmt.Errorf("convert audio: %w", err)
		}
		defer os.Remove(wavPath)
		audioPath = wavPath
	}

	outDir := filepath.Dir(audioPath)
	if err := runCommand(ctx, "whisper", audioPath,
		"--model", t.model,
		"--output_format", "txt",
		"--output_dir", outDir,
	); err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	txtPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".txt"
	defer os.Remove(txtPath)
	transcript, err := os.ReadFile(txtPath)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(transcript), nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, lastLine(msg))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// lastLine keeps subprocess errors short; full stderr never reaches clients.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
