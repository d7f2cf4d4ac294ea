package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetOutputWritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() { Init(Options{}) })

	Info().Str("batch", "7").Msg("batch staged")

	assert.Contains(t, buf.String(), `"batch":"7"`)
	assert.Contains(t, buf.String(), "batch staged")
}

func TestFromContextFallsBackToProcessLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() { Init(Options{}) })

	FromContext(context.Background()).Info().Msg("fallback")
	assert.Contains(t, buf.String(), "fallback")
}

func TestWithContextReturnsStoredLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, true).With().Str("request_id", "abc").Logger()
	ctx := WithContext(context.Background(), l)

	FromContext(ctx).Info().Msg("scoped")
	assert.Contains(t, buf.String(), `"request_id":"abc"`)
}
