// Package listings holds the property corpus: a SQLite-backed store of
// rental and sale listings across the Kathmandu valley, plus the
// free-text criteria parser the PropertyDatabase tool runs on every
// query.
package listings

import "time"

// Canonical property types.
const (
	TypeApartment  = "apartment"
	TypeHouse      = "house"
	TypeLand       = "land"
	TypeCommercial = "commercial"
)

// Listing purposes.
const (
	ForRent = "rent"
	ForSale = "sale"
)

// Listing is one property in the corpus.
type Listing struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PropertyType string    `json:"property_type"`
	ListingType  string    `json:"listing_type"`
	Price        int64     `json:"price"` // NPR; monthly for rent, total for sale
	Location     string    `json:"location"`
	City         string    `json:"city"`
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    int       `json:"bathrooms"`
	AreaSqft     int       `json:"area_sqft,omitempty"`
	Amenities    []string  `json:"amenities,omitempty"`
	MatchScore   int       `json:"match_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// Criteria are structured filters parsed from a free-text query.
// Zero values mean "no constraint".
type Criteria struct {
	Location     string `json:"location,omitempty"`
	PropertyType string `json:"property_type,omitempty"`
	ListingType  string `json:"listing_type,omitempty"`
	MinPrice     int64  `json:"min_price,omitempty"`
	MaxPrice     int64  `json:"max_price,omitempty"`
	Bedrooms     int    `json:"bedrooms,omitempty"`
}

// Empty reports whether no filter was extracted at all.
func (c Criteria) Empty() bool {
	return c == Criteria{}
}

// Stats summarizes the corpus for the PropertyDatabase tool payload.
type Stats struct {
	Total        int   `json:"total"`
	ForRent      int   `json:"for_rent"`
	ForSale      int   `json:"for_sale"`
	AvgRentPrice int64 `json:"avg_rent_price"`
	AvgSalePrice int64 `json:"avg_sale_price"`
}
