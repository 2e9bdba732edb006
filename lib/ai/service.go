package ai

import (
	"context"

	"github.com/sketchbridge/sketchbridge-go/lib/exception"
	aiModel "github.com/sketchbridge/sketchbridge-go/lib/models/ai"
	"github.com/sketchbridge/sketchbridge-go/lib/settings"
	"go.uber.org/zap"
)

const (
	StatusAnalyzing = "Analyzing image with OpenAI GPT-4 Vision..."
	StatusPreparing = "Preparing component library documentation..."
	StatusSending   = "Sending to OpenAI (this may take 10-30 seconds)..."
	StatusParsing   = "Parsing AI response..."
	StatusComplete  = "Analysis complete!"
)

// ProgressFunc receives human readable status updates while an analysis runs.
type ProgressFunc func(status string)

// Analyzer turns a screenshot into a component breakdown.
type Analyzer interface {
	Analyze(ctx context.Context, imageBase64 string, onProgress ProgressFunc) (*aiModel.AnalysisResult, error)
	Available() bool
}

type Service struct {
	completer Completer
	model     string
	logger    *zap.SugaredLogger
}

// NewService builds the analyzer. Without an API key the service reports
// itself unavailable and every analysis fails.
func NewService(aiSettings settings.AISettings, logger *zap.SugaredLogger) *Service {
	service := &Service{
		model:  aiSettings.Model,
		logger: logger,
	}
	if aiSettings.Configured() {
		service.completer = NewOpenAIClient(aiSettings, logger)
		logger.Infow("AI service initialized", "model", aiSettings.Model, "components", len(knowledgeBase))
	} else {
		logger.Warn("AI service not available, OPENAI_API_KEY is not configured")
	}
	return service
}

func NewServiceWithCompleter(completer Completer, logger *zap.SugaredLogger) *Service {
	return &Service{
		completer: completer,
		logger:    logger,
	}
}

func (s *Service) Available() bool {
	return s.completer != nil
}

func (s *Service) Model() string {
	return s.model
}

// ValidateImage rejects empty payloads and images above MaxImageMB.
func ValidateImage(imageBase64 string) error {
	if len(imageBase64) == 0 {
		return exception.NewValidationError("No image data provided", nil)
	}
	if imageSizeMB(imageBase64) > MaxImageMB {
		return exception.NewValidationError("Image too large (max 20MB)", nil)
	}
	return nil
}

func (s *Service) Analyze(ctx context.Context, imageBase64 string, onProgress ProgressFunc) (*aiModel.AnalysisResult, error) {
	progress := func(status string) {
		if onProgress != nil {
			onProgress(status)
		}
	}

	if err := ValidateImage(imageBase64); err != nil {
		return nil, err
	}
	if !s.Available() {
		return nil, exception.NewServiceUnavailableError("AI Service not configured. Please set OPENAI_API_KEY in environment variables.", nil)
	}

	progress(StatusAnalyzing)
	progress(StatusPreparing)
	prompt := Prompt()

	progress(StatusSending)
	s.logger.Debugw("Sending image for analysis", "sizeKB", len(imageBase64)/1024)
	content, err := s.completer.Complete(ctx, imageBase64, prompt)
	if err != nil {
		s.logger.Errorw("AI analysis failed", "error", err)
		return nil, err
	}

	progress(StatusParsing)
	result, err := ParseResult(content)
	if err != nil {
		s.logger.Errorw("AI response could not be parsed", "error", err)
		return nil, err
	}

	s.logger.Infow("AI analysis complete", "components", result.DetectedComponents, "confidence", result.Confidence)
	progress(StatusComplete)
	return result, nil
}

var _ Analyzer = (*Service)(nil)
