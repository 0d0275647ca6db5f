package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/scatty/backend/internal/analysis/emotion"
	"github.com/zhouzirui/scatty/backend/internal/model/chat"
)

var (
	// ErrGenerationFailure marks every provider-side failure: network, quota, auth, timeout.
	ErrGenerationFailure = errors.New("generation failed")
	// ErrGenerationTimeout marks an attempt that ran past its deadline.
	ErrGenerationTimeout = fmt.Errorf("%w: timed out", ErrGenerationFailure)
	// ErrEmptyText is returned when the request carries no user text.
	ErrEmptyText = errors.New("user text is empty")
)

// Generator turns conversation context plus new input into a structured reply. It is
// stateless and safe for concurrent use. Implementations never retry; a parse failure of
// the model output is recovered with ParseReply and is not an error.
type Generator interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// Request is one generation call. History is sent as-is; callers trim it with TrimHistory.
type Request struct {
	SessionID string
	History   []chat.Message
	Text      string
	Image     *Image
}

// Image is a single still frame attached as inline media.
type Image struct {
	Data     []byte
	MIMEType string
}

// Reply is always well formed.
type Reply struct {
	Text    string
	Emotion emotion.Descriptor
}

// GenerationError wraps a provider failure. It matches ErrGenerationFailure via errors.Is.
type GenerationError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailure }

// Fail wraps err as a GenerationError, classifying deadlines as retryable timeouts and
// cancellation as final.
func Fail(provider string, err error, retryable bool) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &GenerationError{Provider: provider, Retryable: true, Err: fmt.Errorf("%w: %v", ErrGenerationTimeout, err)}
	case errors.Is(err, context.Canceled):
		return &GenerationError{Provider: provider, Retryable: false, Err: err}
	default:
		return &GenerationError{Provider: provider, Retryable: retryable, Err: err}
	}
}

// IsRetryable reports whether another attempt may succeed.
func IsRetryable(err error) bool {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Retryable
	}
	return false
}

// TrimHistory keeps the most recent limit messages. A non-positive limit drops all history.
func TrimHistory(history []chat.Message, limit int) []chat.Message {
	if limit <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// Unavailable is used when no provider credential is configured; every call fails.
type Unavailable struct {
	Provider string
	Reason   string
}

func (u Unavailable) Generate(context.Context, Request) (Reply, error) {
	return Reply{}, Fail(u.Provider, errors.New(u.Reason), false)
}
