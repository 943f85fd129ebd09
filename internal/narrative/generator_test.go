package narrative

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/marinedash/internal/models"
)

func testRecord() *models.MarineRecord {
	return &models.MarineRecord{
		Region:       models.EastSea,
		Temperature:  models.MetricSeries{Current: 18.25},
		Salinity:     models.MetricSeries{Current: 33.1},
		Chlorophyll:  models.MetricSeries{Current: 0.457},
		WaveHeight:   models.MetricSeries{Current: 1.2},
		PlasticIndex: models.MetricSeries{Current: 0.5},
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestBuildPrompt(t *testing.T) {
	cfg, err := models.EastSea.Config()
	require.NoError(t, err)

	prompt := BuildPrompt(cfg, testRecord())
	assert.Contains(t, prompt, "해역: 동해")
	assert.Contains(t, prompt, "- 평균 해수면 온도: 18.25°C")
	assert.Contains(t, prompt, "- 평균 염분 농도: 33.1 PSU")
	assert.Contains(t, prompt, "- 클로로필-a 농도: 0.457 mg/m³")
	assert.Contains(t, prompt, "- 평균 파고: 1.2 m")
	assert.Contains(t, prompt, "- 미세플라스틱 농도 지수: 0.5 (0~1, 높을수록 심각)")
	assert.Contains(t, prompt, "마크다운")
}

func TestGenerate(t *testing.T) {
	var gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		gotModel = req.Model
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1760745600,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "  # 동해 해양 환경 보고서\n\n## 개요\n안정적입니다.  "}
			}]
		}`)
	}))
	defer srv.Close()

	g, err := New(Config{APIKey: "test-key", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.Model())

	report, err := g.Generate(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, "# 동해 해양 환경 보고서\n\n## 개요\n안정적입니다.", report)
	assert.Equal(t, DefaultModel, gotModel)
	assert.Contains(t, gotPrompt, "해역: 동해")
}

func TestGenerate_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	g, err := New(Config{APIKey: "test-key", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), testRecord())
	assert.Error(t, err)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	g, err := New(Config{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), testRecord())
	assert.Error(t, err)
}
