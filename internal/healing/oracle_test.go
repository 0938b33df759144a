// File: internal/healing/oracle_test.go
package healing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/config"
)

func testOracleConfig(endpoint string) config.OracleConfig {
	return config.OracleConfig{
		Model:      "gemini-2.5-flash",
		APIKey:     "test-key",
		Endpoint:   endpoint,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RateLimit:  100,
	}
}

func geminiResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestGeminiOracle_RequiresAPIKey(t *testing.T) {
	cfg := testOracleConfig("")
	cfg.APIKey = ""
	_, err := NewGeminiOracle(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestGeminiOracle_ProposeSelector(t *testing.T) {
	var gotReq geminiRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(geminiResponse("#new-selector")))
	}))
	defer server.Close()

	oracle, err := NewGeminiOracle(testOracleConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	selector, err := oracle.ProposeSelector(context.Background(),
		"<body><button id='x'>Go</button></body>", "submit button")
	require.NoError(t, err)
	assert.Equal(t, "#new-selector", selector)

	// Snapshot and description both land in the user prompt.
	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 1)
	prompt := gotReq.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "submit button")
	assert.Contains(t, prompt, "id='x'")
	require.NotNil(t, gotReq.SystemInstruction)
}

func TestGeminiOracle_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(geminiResponse(".fixed")))
	}))
	defer server.Close()

	oracle, err := NewGeminiOracle(testOracleConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	selector, err := oracle.ProposeSelector(context.Background(), "<body/>", "x")
	require.NoError(t, err)
	assert.Equal(t, ".fixed", selector)
	assert.Equal(t, 2, attempts)
}

func TestGeminiOracle_PermanentErrorStopsRetrying(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	oracle, err := NewGeminiOracle(testOracleConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = oracle.ProposeSelector(context.Background(), "<body/>", "x")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestGeminiOracle_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	oracle, err := NewGeminiOracle(testOracleConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = oracle.ProposeSelector(context.Background(), "<body/>", "x")
	assert.ErrorContains(t, err, "no candidates")
}

func TestSanitizeSelector(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean", "#a", "#a"},
		{"surrounding space", "  .btn-primary \n", ".btn-primary"},
		{"fenced", "```css\n#a > .b\n```", "#a > .b"},
		{"bare fence", "```\n#a\n```", "#a"},
		{"trailing explanation", "#a\nThis selector targets the button.", "#a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeSelector(tt.in))
		})
	}
}
