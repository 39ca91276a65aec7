// Package prompts contains all LLM prompt templates used by Gharkhoji.
//
// Prompt text is Go code rather than config files because it is program
// logic: the trace labels the agent parses, the JSON schemas the market
// analyst and titler decode, and the few-shot examples must stay in
// lockstep with the code that consumes them. User-facing configuration
// lives in config.yaml; this package holds the instructions we send to
// models.
//
// Convention: each prompt category gets its own file (system.go,
// market.go, titler.go) with an exported function that accepts the
// dynamic parts and returns the fully interpolated prompt string.
package prompts
