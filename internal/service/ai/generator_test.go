package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/scatty/backend/internal/model/chat"
)

func history(n int) []chat.Message {
	out := make([]chat.Message, n)
	for i := range out {
		out[i] = chat.Message{Seq: uint64(i + 1), Role: chat.RoleUser, Content: fmt.Sprintf("m%d", i+1)}
	}
	return out
}

func TestTrimHistoryKeepsMostRecent(t *testing.T) {
	trimmed := TrimHistory(history(25), 10)

	require.Len(t, trimmed, 10)
	assert.Equal(t, uint64(16), trimmed[0].Seq)
	assert.Equal(t, uint64(25), trimmed[9].Seq)
}

func TestTrimHistoryShortAndEmpty(t *testing.T) {
	assert.Len(t, TrimHistory(history(3), 10), 3)
	assert.Nil(t, TrimHistory(nil, 10))
	assert.Nil(t, TrimHistory(history(3), 0))
}

func TestFailClassifiesErrors(t *testing.T) {
	timeout := Fail("test", context.DeadlineExceeded, false)
	assert.True(t, errors.Is(timeout, ErrGenerationFailure))
	assert.True(t, errors.Is(timeout, ErrGenerationTimeout))
	assert.True(t, IsRetryable(timeout))

	canceled := Fail("test", context.Canceled, true)
	assert.True(t, errors.Is(canceled, ErrGenerationFailure))
	assert.False(t, IsRetryable(canceled))

	quota := Fail("test", errors.New("quota"), true)
	assert.True(t, errors.Is(quota, ErrGenerationFailure))
	assert.False(t, errors.Is(quota, ErrGenerationTimeout))
	assert.True(t, IsRetryable(quota))

	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestUnavailableAlwaysFails(t *testing.T) {
	_, err := Unavailable{Provider: "gemini", Reason: "GEMINI_API_KEY not set"}.Generate(context.Background(), Request{Text: "hi"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationFailure))
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
