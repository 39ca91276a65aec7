package prompts

import (
	"strings"
	"testing"
)

func TestSystemPromptEmbedsCatalog(t *testing.T) {
	catalog := "- Search: searches the web\n- Clarify: asks for details"
	got := SystemPrompt(catalog)

	if !strings.Contains(got, catalog) {
		t.Error("catalog not embedded in system prompt")
	}
	for _, label := range []string{"Thought:", "Action:", "Action Input:", "Final Answer:"} {
		if !strings.Contains(got, label) {
			t.Errorf("system prompt missing trace label %q", label)
		}
	}
	// Both worked examples must survive edits: one ends in Clarify,
	// one chains two tools.
	if !strings.Contains(got, "Action: Clarify") {
		t.Error("system prompt lost the clarification example")
	}
	if !strings.Contains(got, "Action: PropertyDatabase") || !strings.Contains(got, "Action: Maps") {
		t.Error("system prompt lost the two-tool example")
	}
}

func TestMarketAnalysisContext(t *testing.T) {
	with := MarketAnalysis("Lalitpur rentals", "Rents rose 8% this quarter.")
	if !strings.Contains(with, "Rents rose 8% this quarter.") {
		t.Error("context block not embedded")
	}
	if !strings.Contains(with, "Topic: Lalitpur rentals") {
		t.Error("topic not embedded")
	}

	without := MarketAnalysis("Lalitpur rentals", "")
	if strings.Contains(without, "Recent market coverage") {
		t.Error("empty context should omit the coverage block")
	}
}

func TestPreamble(t *testing.T) {
	got := Preamble("Preferred locations: Sanepa. Budget: up to NPR 40,000.")
	if !strings.Contains(got, "Sanepa") {
		t.Error("known facts not embedded")
	}
	if !strings.Contains(got, "Do NOT ask the user again") {
		t.Error("re-ask instruction missing")
	}
}

func TestSessionTitle(t *testing.T) {
	got := SessionTitle("user: need a flat in Boudha")
	if !strings.Contains(got, "user: need a flat in Boudha") {
		t.Error("transcript not embedded")
	}
	if !strings.Contains(got, `{"title"`) {
		t.Error("JSON schema hint missing")
	}
}
