package ai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyforge/internal/config"
	"applyforge/internal/errors"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\r\n{\"a\":1}```", `{"a":1}`},
		{"surrounding whitespace", "\n\n  {\"a\":1}  \n", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.input))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	body, err := DecodeObject("```json\n{\n  \"overall_score\": 92,\n  \"tone\": \"warm\"\n}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"overall_score":92,"tone":"warm"}`, string(body))

	_, err = DecodeObject(`42`)
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = DecodeObject("")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestInferenceFailureJoinsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	failure := inferenceFailure(ctx, "strategy", stderrors.New("stream reset"))
	assert.Equal(t, "strategy", failure.Operation)
	assert.ErrorIs(t, failure, context.Canceled)
	assert.Contains(t, failure.Error(), "stream reset")
}

func TestDemoClient(t *testing.T) {
	client := NewDemoClient(testLogger)

	for _, op := range []string{"context", "strategy", "content", "qa", "resume"} {
		t.Run(op, func(t *testing.T) {
			resp, err := client.Invoke(context.Background(), Request{Operation: op, Directive: "d", Payload: "p"})
			require.NoError(t, err)

			var obj map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(resp.Body, &obj))
			assert.NotEmpty(t, obj)
		})
	}

	_, err := client.Invoke(context.Background(), Request{Operation: "unknown", Directive: "d", Payload: "p"})
	assert.True(t, errors.IsInferenceFailure(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Invoke(ctx, Request{Operation: "qa", Directive: "d", Payload: "p"})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, int64(5), client.Stats()["calls"])
	assert.True(t, client.ModelInfo(context.Background()).Available)
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(context.Background(), config.AIConfig{Provider: "demo"}, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &DemoClient{}, client)

	_, err = NewClient(context.Background(), config.AIConfig{Provider: "openai"}, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported AI provider")
}
