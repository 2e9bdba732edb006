package ai

import "math"

const (
	// MaxImageMB is the largest decoded image accepted for analysis.
	MaxImageMB = 20

	minCostUSD     = 0.01
	maxCostUSD     = 0.05
	costPerMBUSD   = 0.02
	base64Overhead = 0.75
)

type CostEstimate struct {
	EstimatedCostUSD float64 `json:"estimatedCostUSD"`
	Note             string  `json:"note"`
}

// imageSizeMB approximates the decoded size of a base64 payload.
func imageSizeMB(imageBase64 string) float64 {
	return float64(len(imageBase64)) * base64Overhead / (1024 * 1024)
}

func EstimateCost(imageBase64 string) CostEstimate {
	cost := math.Max(minCostUSD, math.Min(maxCostUSD, imageSizeMB(imageBase64)*costPerMBUSD))
	return CostEstimate{
		EstimatedCostUSD: math.Round(cost*1000) / 1000,
		Note:             "Estimate based on image size and GPT-4 Vision pricing",
	}
}
