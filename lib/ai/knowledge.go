package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	aiModel "github.com/sketchbridge/sketchbridge-go/lib/models/ai"
)

//go:embed components.json
var componentsJSON []byte

var knowledgeBase []aiModel.ComponentKnowledge

func init() {
	if err := json.Unmarshal(componentsJSON, &knowledgeBase); err != nil {
		panic(fmt.Sprintf("invalid component knowledge base: %v", err))
	}
}

// KnowledgeBase returns the components the analyzer can recognize.
func KnowledgeBase() []aiModel.ComponentKnowledge {
	components := make([]aiModel.ComponentKnowledge, len(knowledgeBase))
	copy(components, knowledgeBase)
	return components
}

func ComponentById(id string) (aiModel.ComponentKnowledge, bool) {
	for _, component := range knowledgeBase {
		if component.Id == id {
			return component, true
		}
	}
	return aiModel.ComponentKnowledge{}, false
}

func describeComponent(builder *strings.Builder, component aiModel.ComponentKnowledge) {
	fmt.Fprintf(builder, "## %s (%s)\n", component.Name, component.Id)
	fmt.Fprintf(builder, "Category: %s\n", component.Category)
	fmt.Fprintf(builder, "Description: %s\n\n", component.Description)
	fmt.Fprintf(builder, "Visual Appearance:\n%s\n\n", component.VisualDescription)
	builder.WriteString("Visual Characteristics:\n")
	fmt.Fprintf(builder, "- Colors: %s\n", strings.Join(component.VisualCharacteristics.Colors, ", "))
	fmt.Fprintf(builder, "- Spacing: %s\n", strings.Join(component.VisualCharacteristics.Spacing, ", "))
	fmt.Fprintf(builder, "- Borders: %s\n\n", strings.Join(component.VisualCharacteristics.Borders, ", "))

	builder.WriteString("Props:\n")
	for _, prop := range component.Props {
		fmt.Fprintf(builder, "- %s: %s", prop.Name, prop.Type)
		if prop.Required {
			builder.WriteString(" (required)")
		}
		builder.WriteString("\n")
	}

	fmt.Fprintf(builder, "\nSource Code:\n```typescript\n%s\n```\n", component.SourceCode)
	example := ""
	if len(component.UsageExamples) > 0 {
		example = component.UsageExamples[0].Code
	}
	fmt.Fprintf(builder, "\nUsage Example:\n```tsx\n%s\n```\n", example)
}

// Prompt is the instruction sent next to the screenshot. It embeds the whole
// knowledge base.
func Prompt() string {
	var builder strings.Builder
	builder.WriteString("You are analyzing UI screenshots to identify components from this React/TypeScript library.\n\n")
	builder.WriteString("Available Components:\n")
	for i, component := range knowledgeBase {
		if i > 0 {
			builder.WriteString("\n---\n")
		}
		describeComponent(&builder, component)
	}
	builder.WriteString(`
IMPORTANT INSTRUCTIONS:
1. Look for NESTED component structures (e.g., Button inside Panel, TextField inside OverlayPanel)
2. Pay attention to container components (Panel, OverlayPanel, Layout) that wrap other components
3. Identify component hierarchy: which components are children of others
4. Generate code that reflects this nesting structure accurately

Common Patterns to Look For:
- Buttons, TextFields, or TextSearch INSIDE Panels or OverlayPanels
- Multiple form inputs grouped together in a container
- Search components with dropdowns showing results

Task: Analyze the provided screenshot and identify which components are used AND how they are nested.

Return ONLY valid JSON in this format:
{
  "detectedComponents": ["component-id-1", "component-id-2"],
  "layoutStructure": "Detailed description of component hierarchy - mention which components contain which (e.g., 'Panel containing TextField and Button')",
  "generatedCode": "Complete React/TypeScript code with proper nesting structure",
  "confidence": 0.85,
  "reasoning": "Explain component choices AND nesting decisions"
}`)
	return builder.String()
}
