package ai

import "strings"

// modelPricing is USD per million tokens.
type modelPricing struct {
	Input  float64
	Output float64
}

// Pricing is intentionally approximate: it feeds per-execution cost
// accounting, not invoicing. Unknown models cost zero.
var textModelPricing = map[string]modelPricing{
	"gpt-4o":           {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":      {Input: 0.15, Output: 0.60},
	"gpt-4.1":          {Input: 2.00, Output: 8.00},
	"gpt-4.1-mini":     {Input: 0.40, Output: 1.60},
	"o3-mini":          {Input: 1.10, Output: 4.40},
	"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
	"gemini-1.5-pro":   {Input: 1.25, Output: 5.00},
	"gemini-1.5-flash": {Input: 0.075, Output: 0.30},
}

// EstimateCost returns the estimated USD cost for a chat completion.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := textModelPricing[model]
	if !ok {
		// Versioned model ids ("gpt-4o-2024-08-06") fall back to the base
		// model's pricing.
		for base, p := range textModelPricing {
			if strings.HasPrefix(model, base) {
				pricing = p
				ok = true

				break
			}
		}
	}

	if !ok {
		return 0
	}

	const million = 1_000_000

	return float64(promptTokens)/million*pricing.Input +
		float64(completionTokens)/million*pricing.Output
}
