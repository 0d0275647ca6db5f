package conversation

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/zhouzirui/scatty/backend/internal/service/ai"
)

// DefaultVisionPrompt replaces an empty vision text.
const DefaultVisionPrompt = "What do you see?"

const defaultFrameMIME = "image/jpeg"

// ErrInvalidFrame is returned for frames that are empty or not valid base64.
var ErrInvalidFrame = errors.New("invalid frame")

// DecodeFrame accepts raw base64 or a data URL and returns the image bytes with their MIME type.
func DecodeFrame(frame string) (*ai.Image, error) {
	frame = strings.TrimSpace(frame)
	mimeType := ""

	if rest, ok := strings.CutPrefix(frame, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, ErrInvalidFrame
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		frame = payload
	}
	if frame == "" {
		return nil, ErrInvalidFrame
	}

	data, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		// some capture libraries drop the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(frame, "="))
		if err != nil {
			return nil, ErrInvalidFrame
		}
	}
	if len(data) == 0 {
		return nil, ErrInvalidFrame
	}

	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = sniffImage(data)
	}
	return &ai.Image{Data: data, MIMEType: mimeType}, nil
}

func sniffImage(data []byte) string {
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return defaultFrameMIME
}
