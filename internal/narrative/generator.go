// Package narrative produces analyst-style reports for a marine record using
// the OpenAI chat completions API.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/lox/marinedash/internal/metrics"
	"github.com/lox/marinedash/internal/models"
)

const DefaultModel = "gpt-4o-mini"

// FailureMessage is shown to users in place of a report when generation fails.
const FailureMessage = "AI 분석 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."

var ErrDisabled = errors.New("narrative generation is not configured")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for proxies and tests
}

// Generator writes narrative reports.
type Generator struct {
	client openai.Client
	model  string
	logger zerolog.Logger
}

// New creates a generator. It returns ErrDisabled when no API key is set.
func New(cfg Config, logger zerolog.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Generator{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger.With().Str("component", "narrative").Logger(),
	}, nil
}

func (g *Generator) Model() string {
	return g.model
}

// Generate returns a markdown report for rec.
func (g *Generator) Generate(ctx context.Context, rec *models.MarineRecord) (string, error) {
	cfg, err := rec.Region.Config()
	if err != nil {
		return "", err
	}

	g.logger.Info().Str("region", string(rec.Region)).Str("model", g.model).Msg("generating analysis")

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(cfg, rec)),
		},
	})
	if err != nil {
		metrics.NarrativesTotal.WithLabelValues(string(rec.Region), "error").Inc()
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.NarrativesTotal.WithLabelValues(string(rec.Region), "empty").Inc()
		return "", errors.New("no analysis text returned")
	}

	metrics.NarrativesTotal.WithLabelValues(string(rec.Region), "success").Inc()
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt renders the analyst prompt for a region's current values.
func BuildPrompt(cfg models.RegionConfig, rec *models.MarineRecord) string {
	var b strings.Builder
	b.WriteString("당신은 전문 해양 환경 데이터 분석가입니다. 다음 데이터를 바탕으로 선택된 해역에 대한 상세한 분석 보고서를 생성해주세요.\n")
	b.WriteString("보고서는 일반인도 이해하기 쉽게 작성하되, 전문적인 식견을 담아주세요. 잠재적 위험 요인이나 특이사항을 강조해주세요.\n")
	b.WriteString("결과는 마크다운 형식으로 제목, 개요, 상세 분석, 예측 및 권장 사항 섹션으로 나누어 작성해주세요.\n\n")
	fmt.Fprintf(&b, "해역: %s\n\n", cfg.Name)
	b.WriteString("데이터:\n")
	fmt.Fprintf(&b, "- 평균 해수면 온도: %s°C\n", num(rec.Temperature.Current))
	fmt.Fprintf(&b, "- 평균 염분 농도: %s PSU\n", num(rec.Salinity.Current))
	fmt.Fprintf(&b, "- 클로로필-a 농도: %s mg/m³\n", num(rec.Chlorophyll.Current))
	fmt.Fprintf(&b, "- 평균 파고: %s m\n", num(rec.WaveHeight.Current))
	fmt.Fprintf(&b, "- 미세플라스틱 농도 지수: %s (0~1, 높을수록 심각)\n\n", num(rec.PlasticIndex.Current))
	b.WriteString("분석 보고서 시작:\n")
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
