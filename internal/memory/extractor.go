package memory

import (
	"regexp"

	"github.com/gharkhoji/gharkhoji/internal/listings"
)

// Extraction is what one pass over a user message found. Empty fields
// mean the message said nothing about that aspect.
type Extraction struct {
	PriceRange    *PriceRange
	Bedrooms      int
	PropertyTypes []string
	Locations     []string
	Amenities     []string
}

// familyRe triggers the family-friendly amenity tag.
var familyRe = regexp.MustCompile(`(?i)\b(?:family|families|kids?|child|children|couples?)\b`)

// ExtractPreferences runs the heuristic pattern tables over one user
// message. Budget, bedrooms, and property type come from the listings
// criteria parser (same idioms, same >1000 amount threshold); locations
// come from scanning the full neighborhood gazetteer so every mentioned
// area accumulates, not just the first.
func ExtractPreferences(text string) Extraction {
	var e Extraction

	c := listings.ParseCriteria(text)
	if c.MinPrice > 0 || c.MaxPrice > 0 {
		e.PriceRange = &PriceRange{Min: c.MinPrice, Max: c.MaxPrice}
	}
	e.Bedrooms = c.Bedrooms
	if c.PropertyType != "" {
		e.PropertyTypes = []string{c.PropertyType}
	}
	e.Locations = listings.MatchPlaces(text)
	if familyRe.MatchString(text) {
		e.Amenities = []string{"family-friendly"}
	}
	return e
}

// merge folds an extraction into the profile: set union for arrays,
// overwrite for scalars, never removing anything already known.
// Reports whether the profile changed.
func (p *UserPreferences) merge(e Extraction) bool {
	changed := false

	if e.PriceRange != nil {
		if p.PriceRange == nil {
			p.PriceRange = &PriceRange{}
		}
		if v := e.PriceRange.Min; v > 0 && p.PriceRange.Min != v {
			p.PriceRange.Min = v
			changed = true
		}
		if v := e.PriceRange.Max; v > 0 && p.PriceRange.Max != v {
			p.PriceRange.Max = v
			changed = true
		}
	}
	if e.Bedrooms > 0 && e.Bedrooms != p.Bedrooms {
		p.Bedrooms = e.Bedrooms
		changed = true
	}
	changed = unionInto(&p.PropertyTypes, e.PropertyTypes) || changed
	changed = unionInto(&p.Locations, e.Locations) || changed
	changed = unionInto(&p.Amenities, e.Amenities) || changed
	return changed
}

// unionInto appends the values not already present, preserving order.
func unionInto(dst *[]string, add []string) bool {
	changed := false
outer:
	for _, v := range add {
		for _, have := range *dst {
			if have == v {
				continue outer
			}
		}
		*dst = append(*dst, v)
		changed = true
	}
	return changed
}
