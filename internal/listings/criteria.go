package listings

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The parser is a table of patterns, not scattered literals, so each
// rule can be unit-tested and adjusted independently.

// amountPattern matches a numeric amount with optional comma grouping
// and a Nepali magnitude suffix (k, lakh, crore).
const amountPattern = `([\d,]+(?:\.\d+)?)\s*(k|lakh|crore)?`

var (
	// "budget of 20,000-35,000", "budget 20k to 35k"
	budgetRangeRe = regexp.MustCompile(`(?i)budget\s*(?:of\s*)?(?:npr|rs\.?)?\s*` + amountPattern + `\s*(?:-|to)\s*(?:npr|rs\.?)?\s*` + amountPattern)

	// Upper bounds: "under NPR 30,000", "below 25k", "max 40 lakh", "up to 50000"
	maxPriceRe = regexp.MustCompile(`(?i)\b(?:under|below|within|max(?:imum)?|up\s*to|less\s*than)\s*(?:npr|rs\.?)?\s*` + amountPattern)

	// Lower bounds: "above 15,000", "at least 20k", "starting from 1 crore"
	minPriceRe = regexp.MustCompile(`(?i)\b(?:above|over|at\s*least|min(?:imum)?|more\s*than|starting\s*(?:from|at))\s*(?:npr|rs\.?)?\s*` + amountPattern)

	// "budget 30000" with no range or bound keyword
	budgetRe = regexp.MustCompile(`(?i)\bbudget\s*(?:of\s*)?(?:is\s*)?(?:npr|rs\.?)?\s*` + amountPattern)

	// Postfix currency: "30,000 NPR", "45k rupees"
	postfixAmountRe = regexp.MustCompile(`(?i)` + amountPattern + `\s*(?:npr|rs\.?|rupees)\b`)

	// "2BHK", "3 bedroom", "2 beds"
	bedroomsRe = regexp.MustCompile(`(?i)\b(\d+)\s*(?:bhk|bed(?:room)?s?)\b`)

	// "two bedroom", "three bhk"
	spelledBedroomsRe = regexp.MustCompile(`(?i)\b(one|two|three|four|five)\s*(?:bhk|bed(?:room)?s?)\b`)

	// Location follows a place preposition; the capture is trimmed by
	// stopword walking since the regexp package has no lookahead.
	locationRe = regexp.MustCompile(`(?i)\b(?:in|at|near|around)\s+([a-zA-Z][a-zA-Z ]*)`)
)

var spelledNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
}

// typeKeywords maps query words to canonical property types, checked
// in order so "apartment" wins over a stray "house" later in the text.
var typeKeywords = []struct {
	Keyword   string
	Canonical string
}{
	{"apartment", TypeApartment},
	{"flat", TypeApartment},
	{"bhk", TypeApartment},
	{"house", TypeHouse},
	{"villa", TypeHouse},
	{"bungalow", TypeHouse},
	{"home", TypeHouse},
	{"land", TypeLand},
	{"plot", TypeLand},
	{"commercial", TypeCommercial},
	{"office", TypeCommercial},
	{"shop", TypeCommercial},
	{"shutter", TypeCommercial},
}

var rentKeywords = []string{"rent", "rental", "renting", "lease", "to let", "tenant"}
var saleKeywords = []string{"buy", "buying", "sale", "sell", "selling", "purchase"}

// locationStopwords end the location capture: anything budget-, count-,
// or grammar-flavored is not part of a place name.
var locationStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"under": true, "below": true, "above": true, "over": true,
	"within": true, "with": true, "without": true, "for": true,
	"that": true, "budget": true, "max": true, "maximum": true,
	"min": true, "minimum": true, "npr": true, "rs": true,
	"rupees": true, "price": true, "priced": true, "to": true,
	"up": true, "between": true, "less": true, "more": true,
	"at": true, "least": true,
}

// valleyPlaces is the neighborhood gazetteer, multi-word names first so
// "new baneshwor" matches before "baneshwor".
var valleyPlaces = []string{
	"new baneshwor", "old baneshwor", "mid baneshwor",
	"kathmandu", "lalitpur", "bhaktapur", "patan", "baneshwor",
	"koteshwor", "boudha", "thamel", "maharajgunj", "budhanilkantha",
	"balaju", "kalanki", "chabahil", "gongabu", "sanepa", "jawalakhel",
	"pulchowk", "imadol", "kirtipur", "tokha", "swayambhu", "jorpati",
	"sitapaila", "dhapasi", "bhaisepati", "satdobato", "ekantakuna",
	"kupondole", "dillibazar", "baluwatar", "naxal", "lazimpat",
	"basundhara", "samakhusi", "tinkune", "sinamangal", "hattiban",
}

// ParseCriteria extracts structured filters from a free-text property
// query. Missing aspects stay at their zero values; the parser never
// fails, it just finds less.
func ParseCriteria(query string) Criteria {
	var c Criteria
	lower := strings.ToLower(query)

	c.MinPrice, c.MaxPrice = parsePriceRange(query)
	c.Bedrooms = parseBedrooms(query)
	c.Location = parseLocation(query)
	c.PropertyType = parsePropertyType(lower)
	c.ListingType = parseListingType(lower)

	return c
}

// parsePriceRange applies the budget patterns in specificity order.
// Amounts of 1000 or less are ignored to avoid mistaking bedroom or
// floor counts for prices.
func parsePriceRange(query string) (min, max int64) {
	if m := budgetRangeRe.FindStringSubmatch(query); m != nil {
		lo := parseAmount(m[1], m[2])
		hi := parseAmount(m[3], m[4])
		if lo > 1000 && hi > 1000 {
			if lo > hi {
				lo, hi = hi, lo
			}
			return lo, hi
		}
	}

	if m := minPriceRe.FindStringSubmatch(query); m != nil {
		if amt := parseAmount(m[1], m[2]); amt > 1000 {
			min = amt
		}
	}
	if m := maxPriceRe.FindStringSubmatch(query); m != nil {
		if amt := parseAmount(m[1], m[2]); amt > 1000 {
			max = amt
		}
	}
	if max == 0 {
		if m := budgetRe.FindStringSubmatch(query); m != nil {
			if amt := parseAmount(m[1], m[2]); amt > 1000 {
				max = amt
			}
		}
	}
	if min == 0 && max == 0 {
		if m := postfixAmountRe.FindStringSubmatch(query); m != nil {
			if amt := parseAmount(m[1], m[2]); amt > 1000 {
				max = amt
			}
		}
	}
	return min, max
}

// parseAmount converts a matched number plus magnitude suffix to NPR.
func parseAmount(num, unit string) int64 {
	num = strings.ReplaceAll(num, ",", "")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(unit) {
	case "k":
		f *= 1_000
	case "lakh":
		f *= 100_000
	case "crore":
		f *= 10_000_000
	}
	return int64(math.Round(f))
}

func parseBedrooms(query string) int {
	if m := bedroomsRe.FindStringSubmatch(query); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 && n < 20 {
			return n
		}
	}
	if m := spelledBedroomsRe.FindStringSubmatch(query); m != nil {
		return spelledNumbers[strings.ToLower(m[1])]
	}
	return 0
}

// parseLocation prefers an explicit "in/at/near/around <place>" phrase
// and falls back to scanning the gazetteer. The captured phrase is
// walked token by token and cut at the first stopword or after three
// tokens, whichever comes first.
func parseLocation(query string) string {
	if m := locationRe.FindStringSubmatch(query); m != nil {
		var kept []string
		for _, tok := range strings.Fields(m[1]) {
			if locationStopwords[strings.ToLower(tok)] {
				break
			}
			kept = append(kept, tok)
			if len(kept) == 3 {
				break
			}
		}
		if len(kept) > 0 {
			return titleCase(strings.Join(kept, " "))
		}
	}

	lower := strings.ToLower(query)
	for _, place := range valleyPlaces {
		if containsWord(lower, place) {
			return titleCase(place)
		}
	}
	return ""
}

// MatchPlaces returns every gazetteer neighborhood mentioned in the
// text, canonically cased. A multi-word match suppresses the shorter
// names it contains, so "new baneshwor" does not also report
// "baneshwor".
func MatchPlaces(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, place := range valleyPlaces {
		if !containsWord(lower, place) {
			continue
		}
		contained := false
		for _, longer := range found {
			if strings.Contains(longer, place) {
				contained = true
				break
			}
		}
		if !contained {
			found = append(found, place)
		}
	}

	out := make([]string, len(found))
	for i, place := range found {
		out[i] = titleCase(place)
	}
	return out
}

// Keyword scans are boundary-checked: "rent" must not fire inside
// "parents", nor "flat" inside "inflation".

func parsePropertyType(lower string) string {
	for _, tk := range typeKeywords {
		if containsWord(lower, tk.Keyword) {
			return tk.Canonical
		}
	}
	return ""
}

func parseListingType(lower string) string {
	for _, kw := range saleKeywords {
		if containsWord(lower, kw) {
			return ForSale
		}
	}
	for _, kw := range rentKeywords {
		if containsWord(lower, kw) {
			return ForRent
		}
	}
	return ""
}

// containsWord reports whether s contains phrase bounded by non-letters.
func containsWord(s, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isLetter(s[start-1])
		afterOK := end == len(s) || !isLetter(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// titleCase capitalizes the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}
