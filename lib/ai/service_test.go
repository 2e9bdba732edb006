package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sketchbridge/sketchbridge-go/lib/exception"
	"github.com/sketchbridge/sketchbridge-go/lib/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	content string
	err     error
	prompt  string
	image   string
}

func (f *fakeCompleter) Complete(_ context.Context, imageBase64 string, prompt string) (string, error) {
	f.image = imageBase64
	f.prompt = prompt
	return f.content, f.err
}

const validAnswer = `{"detectedComponents":["panel","button-primary"],"layoutStructure":"Panel containing Button","generatedCode":"<Panel><Button.Primary text=\"Go\" /></Panel>","confidence":0.9,"reasoning":"dark button inside a panel"}`

func TestAnalyze_ReportsProgressInOrder(t *testing.T) {
	completer := &fakeCompleter{content: validAnswer}
	service := NewServiceWithCompleter(completer, zap.NewNop().Sugar())

	var statuses []string
	result, err := service.Analyze(context.Background(), "aGVsbG8=", func(status string) {
		statuses = append(statuses, status)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"panel", "button-primary"}, result.DetectedComponents)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, []string{
		"Analyzing image with OpenAI GPT-4 Vision...",
		"Preparing component library documentation...",
		"Sending to OpenAI (this may take 10-30 seconds)...",
		"Parsing AI response...",
		"Analysis complete!",
	}, statuses)
	assert.Equal(t, "aGVsbG8=", completer.image)
	assert.Contains(t, completer.prompt, "overlay-panel")
}

func TestAnalyze_RejectsEmptyImage(t *testing.T) {
	service := NewServiceWithCompleter(&fakeCompleter{content: validAnswer}, zap.NewNop().Sugar())

	_, err := service.Analyze(context.Background(), "", nil)

	require.Error(t, err)
	assert.Equal(t, "No image data provided", err.Error())
	assert.Equal(t, exception.KindValidation, exception.KindOf(err))
}

func TestAnalyze_RejectsOversizedImage(t *testing.T) {
	service := NewServiceWithCompleter(&fakeCompleter{content: validAnswer}, zap.NewNop().Sugar())
	// 28MB of base64 decodes to 21MB
	huge := strings.Repeat("A", 28*1024*1024)

	_, err := service.Analyze(context.Background(), huge, nil)

	require.Error(t, err)
	assert.Equal(t, "Image too large (max 20MB)", err.Error())
}

func TestAnalyze_Unconfigured(t *testing.T) {
	service := NewService(settings.AISettings{}, zap.NewNop().Sugar())
	require.False(t, service.Available())

	called := false
	_, err := service.Analyze(context.Background(), "aGVsbG8=", func(string) { called = true })

	require.Error(t, err)
	assert.Equal(t, exception.KindServiceUnavailable, exception.KindOf(err))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.False(t, called)
}

func TestAnalyze_PropagatesUpstreamError(t *testing.T) {
	upstream := exception.NewServiceUnavailableError(messageRateLimit, errors.New("429"))
	service := NewServiceWithCompleter(&fakeCompleter{err: upstream}, zap.NewNop().Sugar())

	var statuses []string
	_, err := service.Analyze(context.Background(), "aGVsbG8=", func(status string) {
		statuses = append(statuses, status)
	})

	require.ErrorIs(t, err, upstream)
	assert.NotContains(t, statuses, StatusComplete)
}

func TestParseResult_StripsCodeFence(t *testing.T) {
	for _, content := range []string{
		validAnswer,
		"```json\n" + validAnswer + "\n```",
		"```\n" + validAnswer + "\n```",
		"  \n" + validAnswer + "\n ",
	} {
		result, err := ParseResult(content)
		require.NoError(t, err, content)
		assert.Equal(t, "Panel containing Button", result.LayoutStructure)
	}
}

func TestParseResult_InvalidJSON(t *testing.T) {
	_, err := ParseResult("I could not find any components")

	require.Error(t, err)
	assert.Equal(t, exception.KindServiceUnavailable, exception.KindOf(err))
}

func TestEstimateCost(t *testing.T) {
	assert.Equal(t, 0.01, EstimateCost("aGVsbG8=").EstimatedCostUSD)

	// 2MB decoded
	overhead := base64Overhead
	twoMB := strings.Repeat("A", int(2*1024*1024/overhead))
	assert.InDelta(t, 0.04, EstimateCost(twoMB).EstimatedCostUSD, 0.0005)

	tenMB := strings.Repeat("A", int(10*1024*1024/overhead))
	assert.Equal(t, 0.05, EstimateCost(tenMB).EstimatedCostUSD)
}

func TestKnowledgeBase(t *testing.T) {
	components := KnowledgeBase()
	ids := make([]string, 0, len(components))
	for _, component := range components {
		ids = append(ids, component.Id)
		assert.NotEmpty(t, component.SourceCode, component.Id)
		assert.NotEmpty(t, component.UsageExamples, component.Id)
	}
	assert.Equal(t, []string{"button-primary", "button-secondary", "text-field", "text-search", "panel", "overlay-panel"}, ids)

	panel, ok := ComponentById("panel")
	require.True(t, ok)
	assert.Equal(t, "Panel", panel.Name)
	_, ok = ComponentById("carousel")
	assert.False(t, ok)

	prompt := Prompt()
	assert.Contains(t, prompt, "## Button.Primary (button-primary)")
	assert.Contains(t, prompt, "- text: string (required)")
	assert.Contains(t, prompt, "Return ONLY valid JSON")
}
