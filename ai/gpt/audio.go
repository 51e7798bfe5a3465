package gpt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Transcribe converts a voice note to text with Whisper.
func (c *Classifier) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio")
	}

	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: fileName,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatJSON,
	}

	resp, err := c.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return resp.Text, nil
}

// audioFileName picks an extension Whisper accepts for a WhatsApp mime type.
func audioFileName(mime string) string {
	mime = strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	switch mime {
	case "audio/mpeg":
		return "voice.mp3"
	case "audio/mp4", "audio/aac":
		return "voice.m4a"
	case "audio/amr":
		return "voice.amr"
	case "audio/wav", "audio/x-wav":
		return "voice.wav"
	default:
		return "voice.ogg"
	}
}
