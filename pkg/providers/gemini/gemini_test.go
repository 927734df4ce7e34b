package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

func TestProvider_Translate(t *testing.T) {
	var gotPath, gotSystem, gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			SystemInstruction struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Contents) > 0 && len(body.Contents[0].Parts) > 0 {
			gotUser = body.Contents[0].Parts[0].Text
		}
		if len(body.SystemInstruction.Parts) > 0 {
			gotSystem = body.SystemInstruction.Parts[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hi\n\n> 你好"}]}}],` +
			`"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":4}}`))
	}))
	defer server.Close()

	cfg := providers.DefaultConfig()
	cfg.Provider = Name
	cfg.APIKey = "key"
	cfg.APIEndpoint = server.URL
	cfg.Model = ""

	provider, err := New(context.Background(), cfg)
	require.NoError(t, err)

	resp, err := provider.Translate(context.Background(), &providers.Request{SystemPrompt: "sys", Text: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hi\n\n> 你好", resp.Text)
	assert.Equal(t, 12, resp.TokensIn)
	assert.True(t, strings.HasSuffix(gotPath, "models/"+DefaultModel+":generateContent"), gotPath)
	assert.Equal(t, "sys", gotSystem)
	assert.Equal(t, "Hi", gotUser)
}

func TestProvider_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), providers.Config{Provider: Name})
	require.Error(t, err)
	assert.Equal(t, providers.CodeInvalidConfig, providers.CodeOf(err))
}
