package llm

import "math"

// ModelPrice is the {input, output, cached-input} price per 1,000,000
// tokens for one model identifier. CachedInput is nil for models that
// offer no cached-input discount.
type ModelPrice struct {
	Input       float64
	Output      float64
	CachedInput *float64
}

// defaultModel is the fallback pricing used for any model identifier not
// present in the table (spec §4.1: "equivalent to gpt-5-mini pricing").
const defaultModel = "gpt-5-mini"

// pricingTable is a static map from model identifier to price. Adding a
// new model is a table change, not a code change (spec §4.1).
var pricingTable = map[string]ModelPrice{
	"gpt-5-mini": {Input: 0.25, Output: 2.00, CachedInput: ptr(0.025)},
	"gpt-5-nano": {Input: 0.05, Output: 0.40, CachedInput: ptr(0.005)},
	"gpt-4o":     {Input: 2.50, Output: 10.00, CachedInput: ptr(1.25)},
	"gpt-4o-mini": {Input: 0.15, Output: 0.60, CachedInput: ptr(0.075)},
	"text-embedding-3-small": {Input: 0.02, Output: 0},
	"text-embedding-3-large": {Input: 0.13, Output: 0},
	"claude-sonnet-4-20250514": {Input: 3.00, Output: 15.00},
	"claude-3-5-sonnet-20241022": {Input: 3.00, Output: 15.00},
	"llama-3.3-70b-versatile": {Input: 0.59, Output: 0.79},
}

func ptr(f float64) *float64 { return &f }

// Pricing is the static pricing table used by the LLM Tracker to compute
// per-call cost. It is immutable after construction and safe for
// concurrent reads (spec §5: "the pricing table (immutable)").
type Pricing struct {
	table map[string]ModelPrice
}

// NewPricing builds a Pricing from the default static table.
func NewPricing() *Pricing {
	return &Pricing{table: pricingTable}
}

// priceFor returns the price for model, falling back to defaultModel
// pricing when model is unknown.
func (p *Pricing) priceFor(model string) ModelPrice {
	if price, ok := p.table[model]; ok {
		return price
	}
	return p.table[defaultModel]
}

// CostBreakdown is the per-call cost split required by the LLM Call
// Record invariant: total == input + output + cached, to 8 decimals.
type CostBreakdown struct {
	InputCost  float64
	OutputCost float64
	CachedCost float64
	TotalCost  float64
}

// Compute calculates cost for a call with the given token counts against
// model's price, rounding every component to 8 decimals (spec §4.1, §8
// invariant 4).
func (p *Pricing) Compute(model string, inputTokens, outputTokens, cachedTokens int) CostBreakdown {
	price := p.priceFor(model)

	inputCost := round8(float64(inputTokens) / 1e6 * price.Input)
	outputCost := round8(float64(outputTokens) / 1e6 * price.Output)

	var cachedCost float64
	if cachedTokens > 0 && price.CachedInput != nil {
		cachedCost = round8(float64(cachedTokens) / 1e6 * *price.CachedInput)
	}

	total := round8(inputCost + outputCost + cachedCost)
	return CostBreakdown{
		InputCost:  inputCost,
		OutputCost: outputCost,
		CachedCost: cachedCost,
		TotalCost:  total,
	}
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
