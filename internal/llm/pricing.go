package llm

// modelPricing is USD per one million tokens.
type modelPricing struct {
	prompt     float64
	completion float64
}

// pricingTable covers the models the service is configured to use. Prices
// drift over time; these match the upstream published rates.
var pricingTable = map[string]modelPricing{
	"gpt-4o":                 {prompt: 2.50, completion: 10.00},
	"gpt-4o-mini":            {prompt: 0.15, completion: 0.60},
	"gpt-4.1":                {prompt: 2.00, completion: 8.00},
	"gpt-4.1-mini":           {prompt: 0.40, completion: 1.60},
	"text-embedding-3-small": {prompt: 0.02, completion: 0},
	"text-embedding-3-large": {prompt: 0.13, completion: 0},
}

// fallbackPricing applies to models missing from the table. Charging at the
// highest known rate overstates rather than understates cost.
var fallbackPricing = modelPricing{prompt: 2.50, completion: 10.00}

// CostFor returns the USD cost of a call from its token counts. Model names
// with version suffixes (gpt-4o-2024-08-06) match their base entry.
func CostFor(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		pricing = matchBaseModel(model)
	}
	return pricing.prompt*float64(promptTokens)/1e6 +
		pricing.completion*float64(completionTokens)/1e6
}

func matchBaseModel(model string) modelPricing {
	best := ""
	for name := range pricingTable {
		if len(name) > len(best) && len(model) >= len(name) && model[:len(name)] == name {
			best = name
		}
	}
	if best == "" {
		return fallbackPricing
	}
	return pricingTable[best]
}
