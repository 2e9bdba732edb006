package ai

type AnalysisResult struct {
	DetectedComponents []string `json:"detectedComponents"`
	LayoutStructure    string   `json:"layoutStructure"`
	GeneratedCode      string   `json:"generatedCode"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
}

type ComponentProp struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Required     bool   `json:"required"`
	Description  string `json:"description,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
}

type VisualCharacteristics struct {
	Colors     []string `json:"colors"`
	Typography []string `json:"typography"`
	Spacing    []string `json:"spacing"`
	Borders    []string `json:"borders"`
}

type CodeExample struct {
	Description string `json:"description"`
	Code        string `json:"code"`
}

// ComponentKnowledge describes one UI library component the analyzer can
// recognize.
type ComponentKnowledge struct {
	Id                    string                `json:"id"`
	Name                  string                `json:"name"`
	Category              string                `json:"category"`
	Description           string                `json:"description"`
	VisualDescription     string                `json:"visualDescription"`
	SourceCode            string                `json:"sourceCode"`
	UsageExamples         []CodeExample         `json:"usageExamples"`
	VisualCharacteristics VisualCharacteristics `json:"visualCharacteristics"`
	Props                 []ComponentProp       `json:"props"`
}
