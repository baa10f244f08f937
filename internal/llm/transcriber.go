package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Transcription is the text recognized in an audio clip
type Transcription struct {
	Text     string
	Duration time.Duration // zero when the provider did not report it
	Language string
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcription, error)
}

// WhisperTranscriber uses the OpenAI audio transcription endpoint
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisperTranscriber creates a transcriber for Portuguese audio.
func NewWhisperTranscriber(client *openai.Client, model string) *WhisperTranscriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: client, model: model, language: "pt"}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcription, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   audio,
		FilePath: filename,
		Language: t.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return &Transcription{
		Text:     text,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
		Language: resp.Language,
	}, nil
}
