package deepseek

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"fiction-server/internal/domain"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com/v1"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.85
	DefaultMaxTokens   = 800
	defaultTimeout     = 120 * time.Second

	// fallbackEncoding используется, когда tiktoken не знает модель.
	fallbackEncoding = "cl100k_base"
)

var (
	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiction_generation_requests_total",
			Help: "Total number of chat completion requests sent to the generation provider.",
		},
		[]string{"model", "status"},
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fiction_generation_duration_seconds",
			Help:    "Histogram of generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	generationPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fiction_generation_prompt_tokens",
			Help:    "Histogram of prompt token counts reported by the provider.",
			Buckets: prometheus.LinearBuckets(500, 500, 20), // 500 ... 10000, история растет с каждым ходом
		},
		[]string{"model"},
	)
	generationCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fiction_generation_completion_tokens",
			Help:    "Histogram of completion token counts reported by the provider.",
			Buckets: prometheus.LinearBuckets(50, 50, 16), // 50 ... 800
		},
		[]string{"model"},
	)
)

// Config содержит параметры клиента генерации.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	// Temperature: nil - DefaultTemperature. Явный 0 допустим.
	Temperature *float32
	MaxTokens   int
	// EstimateTokens включает локальный подсчет токенов промпта через tiktoken.
	// Первая оценка может скачать словарь BPE.
	EstimateTokens bool
	HTTPClient     *http.Client
}

// Client отправляет промпты в chat completions API, совместимый с OpenAI (по умолчанию DeepSeek).
type Client struct {
	openaiClient *openai.Client
	model        string
	timeout      time.Duration
	temperature  float32
	maxTokens    int
	logger       *zap.Logger

	estimateTokens bool
	encOnce        sync.Once
	enc            *tiktoken.Tiktoken
}

// NewClient создает клиент. Пустые параметры заменяются значениями по умолчанию.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generation provider API key is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	temperature := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if temperature < 0 {
		return nil, fmt.Errorf("temperature must not be negative: %v", temperature)
	}
	if temperature == 0 {
		// go-openai опускает нулевую температуру (omitempty), провайдер подставил бы свою
		temperature = math.SmallestNonzeroFloat32
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	} else {
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		openaiClient:   openai.NewClientWithConfig(config),
		model:          cfg.Model,
		timeout:        cfg.Timeout,
		temperature:    temperature,
		maxTokens:      cfg.MaxTokens,
		logger:         logger.Named("DeepseekClient"),
		estimateTokens: cfg.EstimateTokens,
	}, nil
}

// Generate отправляет промпт одним пользовательским сообщением и возвращает
// содержимое первого варианта без окружающих пробелов.
// Любая ошибка оборачивается в domain.ErrGenerationFailure. Повторов нет.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := c.logger.With(zap.String("model", c.model), zap.Int("promptBytes", len(prompt)))
	if n, ok := c.countTokens(prompt); ok {
		log = log.With(zap.Int("estimatedPromptTokens", n))
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	startTime := time.Now()
	log.Debug("Sending generation request")
	resp, err := c.openaiClient.CreateChatCompletion(ctx, req)
	duration := time.Since(startTime)

	if err != nil {
		status := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = "timeout"
			err = fmt.Errorf("timed out after %v: %w", c.timeout, err)
		}
		generationRequestsTotal.With(prometheus.Labels{"model": c.model, "status": status}).Inc()
		log.Error("Generation request failed", zap.Duration("duration", duration), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}

	if len(resp.Choices) == 0 {
		generationRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		log.Error("Provider returned no choices", zap.Duration("duration", duration))
		return "", fmt.Errorf("%w: response contains no choices", domain.ErrGenerationFailure)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		generationRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		log.Error("Provider returned empty content", zap.Duration("duration", duration))
		return "", fmt.Errorf("%w: first choice has empty content", domain.ErrGenerationFailure)
	}

	generationRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	generationDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		generationPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.PromptTokens))
		generationCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.CompletionTokens))
	}

	log.Info("Generation completed",
		zap.Duration("duration", duration),
		zap.Int("responseChars", len([]rune(text))),
		zap.Int("promptTokens", resp.Usage.PromptTokens),
		zap.Int("completionTokens", resp.Usage.CompletionTokens),
	)
	return text, nil
}

// countTokens оценивает число токенов промпта. false, если оценка выключена или недоступна.
func (c *Client) countTokens(prompt string) (int, bool) {
	if !c.estimateTokens {
		return 0, false
	}
	c.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(fallbackEncoding)
		}
		if err != nil {
			c.logger.Warn("Token estimation disabled: tokenizer unavailable", zap.Error(err))
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return 0, false
	}
	return len(c.enc.Encode(prompt, nil, nil)), true
}
