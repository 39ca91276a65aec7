package prompts

import "fmt"

// marketTemplate is the prompt sent to an LLM to generate a structured
// market report. The format verbs are an optional context block and the
// analysis topic.
const marketTemplate = `You are a real-estate market analyst covering Nepal. Produce a market analysis as JSON with exactly these fields:

{
  "overview": "2-4 sentence summary of the current market situation",
  "trends": ["current market trend", "3-5 trends total"],
  "investment_insights": ["what this means for investors"],
  "risks": ["risk an investor should weigh"],
  "opportunities": ["opportunity worth acting on"],
  "price_projections": "expected price movement over the next 12 months",
  "recommendations": ["actionable recommendation"]
}

Be concrete: name areas, price levels in NPR, and timeframes where you can. Do not invent statistics; qualify uncertain claims.
%sTopic: %s

JSON:`

// marketContextBlock wraps fetched page text that grounds the analysis
// in current coverage.
const marketContextBlock = `
Recent market coverage to ground the analysis:
%s

`

// MarketAnalysis returns the market report prompt for a topic. Context
// is readable text from fetched market pages and may be empty.
func MarketAnalysis(topic, context string) string {
	block := ""
	if context != "" {
		block = fmt.Sprintf(marketContextBlock, context)
	}
	return fmt.Sprintf(marketTemplate, block, topic)
}
