package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sketchbridge/sketchbridge-go/lib/exception"
	aiModel "github.com/sketchbridge/sketchbridge-go/lib/models/ai"
	"github.com/sketchbridge/sketchbridge-go/lib/settings"
	"go.uber.org/zap"
)

const (
	messageInvalidKey = "Invalid OpenAI API key. Please check your configuration."
	messageTimeout    = "OpenAI API request timed out. Please try again."
	messageRateLimit  = "OpenAI rate limit exceeded. Please wait a moment and try again."
)

// Completer sends one screenshot with the prompt and returns the raw model
// answer.
type Completer interface {
	Complete(ctx context.Context, imageBase64 string, prompt string) (string, error)
}

type imageUrl struct {
	Url    string `json:"url"`
	Detail string `json:"detail"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageUrl *imageUrl `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	MaxTokens      int            `json:"max_tokens"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// retryLogger adapts zap to the leveled logger retryablehttp expects.
type retryLogger struct {
	logger *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}

// OpenAIClient talks to an OpenAI compatible chat completions endpoint.
// 429 and 5xx answers are retried.
type OpenAIClient struct {
	httpClient *retryablehttp.Client
	baseUrl    string
	apiKey     string
	model      string
	maxTokens  int
	logger     *zap.SugaredLogger
}

func NewOpenAIClient(aiSettings settings.AISettings, logger *zap.SugaredLogger) *OpenAIClient {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 500 * time.Millisecond
	httpClient.RetryWaitMax = 5 * time.Second
	httpClient.HTTPClient.Timeout = aiSettings.Timeout()
	httpClient.Logger = retryLogger{logger: logger}
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &OpenAIClient{
		httpClient: httpClient,
		baseUrl:    strings.TrimRight(aiSettings.BaseUrl, "/"),
		apiKey:     aiSettings.ApiKey,
		model:      aiSettings.Model,
		maxTokens:  aiSettings.MaxTokens,
		logger:     logger,
	}
}

func (o *OpenAIClient) Complete(ctx context.Context, imageBase64 string, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{
						Type: "image_url",
						ImageUrl: &imageUrl{
							Url:    "data:image/png;base64," + imageBase64,
							Detail: "high",
						},
					},
					{
						Type: "text",
						Text: prompt,
					},
				},
			},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", err
	}

	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, o.baseUrl+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+o.apiKey)

	start := time.Now()
	response, err := o.httpClient.Do(request)
	if err != nil {
		return "", mapTransportError(err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return "", mapTransportError(err)
	}
	if response.StatusCode != http.StatusOK {
		return "", mapStatusError(response.StatusCode, payload)
	}

	var completion chatResponse
	if err := json.Unmarshal(payload, &completion); err != nil {
		return "", exception.NewServiceUnavailableError("Invalid response from OpenAI", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", exception.NewServiceUnavailableError("No response from OpenAI", nil)
	}

	o.logger.Debugw("OpenAI response received",
		"duration", time.Since(start).Round(100*time.Millisecond),
		"tokensUsed", completion.Usage.TotalTokens,
		"length", len(completion.Choices[0].Message.Content))
	return completion.Choices[0].Message.Content, nil
}

func mapTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return exception.NewServiceUnavailableError(messageTimeout, err)
	}
	return exception.NewServiceUnavailableError("OpenAI request failed", err)
}

func mapStatusError(status int, payload []byte) error {
	var apiErr apiErrorResponse
	_ = json.Unmarshal(payload, &apiErr)
	cause := fmt.Errorf("openai: status %d: %s", status, apiErr.Error.Message)

	switch {
	case status == http.StatusUnauthorized || apiErr.Error.Code == "invalid_api_key":
		return exception.NewServiceUnavailableError(messageInvalidKey, cause)
	case status == http.StatusTooManyRequests || strings.Contains(apiErr.Error.Code, "rate_limit"):
		return exception.NewServiceUnavailableError(messageRateLimit, cause)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return exception.NewServiceUnavailableError(messageTimeout, cause)
	}
	message := "OpenAI request failed"
	if apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}
	return exception.NewServiceUnavailableError(message, cause)
}

// ParseResult decodes the model answer, tolerating a markdown code fence
// around the JSON.
func ParseResult(content string) (*aiModel.AnalysisResult, error) {
	jsonText := strings.TrimSpace(content)
	if strings.HasPrefix(jsonText, "```json") {
		jsonText = strings.TrimPrefix(jsonText, "```json")
	} else if strings.HasPrefix(jsonText, "```") {
		jsonText = strings.TrimPrefix(jsonText, "```")
	}
	jsonText = strings.TrimSuffix(strings.TrimSpace(jsonText), "```")

	var result aiModel.AnalysisResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, exception.NewServiceUnavailableError("Failed to parse AI response", err)
	}
	if result.DetectedComponents == nil {
		result.DetectedComponents = []string{}
	}
	return &result, nil
}
