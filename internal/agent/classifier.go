package agent

import "strings"

// clarificationPhrases are the request-for-detail markers the
// classifier looks for. Matching is case-insensitive substring.
var clarificationPhrases = []string{
	"could you",
	"please tell me",
	"what kind of",
	"more details",
	"help me",
	"tell me more",
}

// needsClarification reports whether answer reads like a question back
// to the user: a question mark plus at least one request-for-detail
// phrase. It is a heuristic; callers tolerate both false positives and
// false negatives.
func needsClarification(answer string) bool {
	if !strings.Contains(answer, "?") {
		return false
	}
	lower := strings.ToLower(answer)
	for _, p := range clarificationPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
