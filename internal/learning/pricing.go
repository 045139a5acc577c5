package learning

// ModelPricing defines cost per million tokens for one model.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// modelPricing is the unit-price table used to compute attempt cost when
// the CLI does not report one itself. Unknown models cost zero; the
// reported token counts still land in the record.
var modelPricing = map[string]ModelPricing{
	"claude-opus-4":    {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-sonnet-4":  {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-haiku": {InputPer1M: 0.80, OutputPer1M: 4.00},
	"gpt-4.1":          {InputPer1M: 2.00, OutputPer1M: 8.00},
	"gpt-4.1-mini":     {InputPer1M: 0.40, OutputPer1M: 1.60},
	"o3":               {InputPer1M: 2.00, OutputPer1M: 8.00},
	"gemini-2.5-pro":   {InputPer1M: 1.25, OutputPer1M: 10.00},
	"gemini-2.5-flash": {InputPer1M: 0.30, OutputPer1M: 2.50},
	"qwen2.5-coder":    {InputPer1M: 0, OutputPer1M: 0},
}

// Cost computes USD cost for a token count on a model. Zero for unknown
// models.
func Cost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*pricing.InputPer1M +
		float64(outputTokens)/1e6*pricing.OutputPer1M
}
