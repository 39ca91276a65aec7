package listings

import "time"

// seedListings returns the built-in Kathmandu-valley corpus used when
// the database is empty. Prices are NPR: monthly for rentals, total
// for sales. match_score is a curated relevance weight the search
// orders by.
func seedListings() []Listing {
	created := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)

	return []Listing{
		{
			ID: "lst-0001", Title: "Sunny 2BHK apartment near Baneshwor chowk",
			Description:  "South-facing second-floor flat with parking, five minutes from the main road.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 28000,
			Location: "New Baneshwor", City: "Kathmandu", Bedrooms: 2, Bathrooms: 1,
			AreaSqft: 850, Amenities: []string{"parking", "water supply", "balcony"},
			MatchScore: 95, CreatedAt: created,
		},
		{
			ID: "lst-0002", Title: "Spacious 3BHK flat in Sanepa with terrace",
			Description:  "Quiet lane near the Lalitpur ring road, ideal for families.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 55000,
			Location: "Sanepa", City: "Lalitpur", Bedrooms: 3, Bathrooms: 2,
			AreaSqft: 1400, Amenities: []string{"terrace", "parking", "solar water"},
			MatchScore: 92, CreatedAt: created,
		},
		{
			ID: "lst-0003", Title: "Budget 1BHK near Koteshwor",
			Description:  "Compact flat on the airport side of the ring road, good bus access.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 15000,
			Location: "Koteshwor", City: "Kathmandu", Bedrooms: 1, Bathrooms: 1,
			AreaSqft: 450, Amenities: []string{"water supply"},
			MatchScore: 74, CreatedAt: created,
		},
		{
			ID: "lst-0004", Title: "2BHK apartment in Kathmandu near Ratopul",
			Description:  "Renovated flat close to schools and the Pashupati area.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 25000,
			Location: "Gaushala", City: "Kathmandu", Bedrooms: 2, Bathrooms: 1,
			AreaSqft: 780, Amenities: []string{"water supply", "rooftop access"},
			MatchScore: 88, CreatedAt: created,
		},
		{
			ID: "lst-0005", Title: "Modern 2BHK with lift in Lazimpat tower",
			Description:  "Serviced apartment block behind the embassy row, backup power.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 65000,
			Location: "Lazimpat", City: "Kathmandu", Bedrooms: 2, Bathrooms: 2,
			AreaSqft: 1050, Amenities: []string{"lift", "generator", "security", "parking"},
			MatchScore: 90, CreatedAt: created,
		},
		{
			ID: "lst-0006", Title: "Family house for rent in Budhanilkantha",
			Description:  "Two-and-a-half storey house with garden, mountain view from the roof.",
			PropertyType: TypeHouse, ListingType: ForRent, Price: 85000,
			Location: "Budhanilkantha", City: "Kathmandu", Bedrooms: 4, Bathrooms: 3,
			AreaSqft: 2600, Amenities: []string{"garden", "parking", "solar water", "study room"},
			MatchScore: 86, CreatedAt: created,
		},
		{
			ID: "lst-0007", Title: "Cozy bungalow in Bhaisepati",
			Description:  "Single-family bungalow in a planned colony, wide road access.",
			PropertyType: TypeHouse, ListingType: ForRent, Price: 70000,
			Location: "Bhaisepati", City: "Lalitpur", Bedrooms: 3, Bathrooms: 2,
			AreaSqft: 2000, Amenities: []string{"garden", "parking", "security"},
			MatchScore: 82, CreatedAt: created,
		},
		{
			ID: "lst-0008", Title: "3BHK flat for rent in Pulchowk",
			Description:  "Walking distance to the engineering campus and Labim Mall.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 48000,
			Location: "Pulchowk", City: "Lalitpur", Bedrooms: 3, Bathrooms: 2,
			AreaSqft: 1250, Amenities: []string{"parking", "balcony", "water supply"},
			MatchScore: 89, CreatedAt: created,
		},
		{
			ID: "lst-0009", Title: "Studio flat near Thamel for working professionals",
			Description:  "Furnished studio above a quiet courtyard, wifi included.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 22000,
			Location: "Thamel", City: "Kathmandu", Bedrooms: 1, Bathrooms: 1,
			AreaSqft: 380, Amenities: []string{"furnished", "wifi"},
			MatchScore: 70, CreatedAt: created,
		},
		{
			ID: "lst-0010", Title: "2BHK in Imadol with open kitchen",
			Description:  "New building near the Mahalaxmi municipality office.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 24000,
			Location: "Imadol", City: "Lalitpur", Bedrooms: 2, Bathrooms: 1,
			AreaSqft: 800, Amenities: []string{"parking", "water supply", "balcony"},
			MatchScore: 84, CreatedAt: created,
		},
		{
			ID: "lst-0011", Title: "Ground-floor flat in Chabahil for small family",
			Description:  "Close to the Chabahil stupa, morning sun in every room.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 18000,
			Location: "Chabahil", City: "Kathmandu", Bedrooms: 2, Bathrooms: 1,
			AreaSqft: 650, Amenities: []string{"water supply"},
			MatchScore: 76, CreatedAt: created,
		},
		{
			ID: "lst-0012", Title: "Whole house to let in Kirtipur",
			Description:  "Traditional style house near Tribhuvan University gate.",
			PropertyType: TypeHouse, ListingType: ForRent, Price: 45000,
			Location: "Kirtipur", City: "Kathmandu", Bedrooms: 4, Bathrooms: 2,
			AreaSqft: 1900, Amenities: []string{"courtyard", "parking"},
			MatchScore: 72, CreatedAt: created,
		},
		{
			ID: "lst-0013", Title: "Luxury 3BHK apartment in Naxal residency",
			Description:  "Gated community with gym and community hall.",
			PropertyType: TypeApartment, ListingType: ForSale, Price: 32500000,
			Location: "Naxal", City: "Kathmandu", Bedrooms: 3, Bathrooms: 3,
			AreaSqft: 1650, Amenities: []string{"gym", "lift", "security", "parking", "community hall"},
			MatchScore: 93, CreatedAt: created,
		},
		{
			ID: "lst-0014", Title: "2BHK apartment for sale in Satdobato",
			Description:  "Fourth floor unit in an established apartment society.",
			PropertyType: TypeApartment, ListingType: ForSale, Price: 18500000,
			Location: "Satdobato", City: "Lalitpur", Bedrooms: 2, Bathrooms: 2,
			AreaSqft: 1100, Amenities: []string{"lift", "parking", "security"},
			MatchScore: 87, CreatedAt: created,
		},
		{
			ID: "lst-0015", Title: "New house for sale in Tokha",
			Description:  "Three storey house on a 4 aana plot, earthquake-resistant design.",
			PropertyType: TypeHouse, ListingType: ForSale, Price: 42000000,
			Location: "Tokha", City: "Kathmandu", Bedrooms: 5, Bathrooms: 4,
			AreaSqft: 3200, Amenities: []string{"garden", "parking", "solar water", "roof terrace"},
			MatchScore: 85, CreatedAt: created,
		},
		{
			ID: "lst-0016", Title: "Residential house in Bhaktapur near Suryabinayak",
			Description:  "Quiet neighborhood ten minutes from the Araniko highway.",
			PropertyType: TypeHouse, ListingType: ForSale, Price: 27500000,
			Location: "Suryabinayak", City: "Bhaktapur", Bedrooms: 4, Bathrooms: 2,
			AreaSqft: 2300, Amenities: []string{"garden", "parking"},
			MatchScore: 79, CreatedAt: created,
		},
		{
			ID: "lst-0017", Title: "8 aana residential land in Gongabu",
			Description:  "Plotted land with 13-foot road access, suitable for house construction.",
			PropertyType: TypeLand, ListingType: ForSale, Price: 24000000,
			Location: "Gongabu", City: "Kathmandu",
			Amenities:  []string{"road access", "utilities nearby"},
			MatchScore: 77, CreatedAt: created,
		},
		{
			ID: "lst-0018", Title: "4 aana plot near Imadol height",
			Description:  "South-facing plot in a developing residential area.",
			PropertyType: TypeLand, ListingType: ForSale, Price: 11000000,
			Location: "Imadol", City: "Lalitpur",
			Amenities:  []string{"road access"},
			MatchScore: 71, CreatedAt: created,
		},
		{
			ID: "lst-0019", Title: "Commercial shutter space on Koteshwor main road",
			Description:  "Street-front shutter suitable for retail, high footfall.",
			PropertyType: TypeCommercial, ListingType: ForRent, Price: 60000,
			Location: "Koteshwor", City: "Kathmandu",
			AreaSqft: 600, Amenities: []string{"street frontage", "storage"},
			MatchScore: 80, CreatedAt: created,
		},
		{
			ID: "lst-0020", Title: "Office floor for rent in Tinkune business tower",
			Description:  "Open-plan office floor with dedicated parking and lift access.",
			PropertyType: TypeCommercial, ListingType: ForRent, Price: 120000,
			Location: "Tinkune", City: "Kathmandu",
			AreaSqft: 2200, Amenities: []string{"lift", "generator", "parking", "server room"},
			MatchScore: 83, CreatedAt: created,
		},
		{
			ID: "lst-0021", Title: "2BHK flat in Kalanki for small family",
			Description:  "Near the ring road expansion, easy access to Thankot side.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 20000,
			Location: "Kalanki", City: "Kathmandu", Bedrooms: 2, Bathrooms: 1,
			AreaSqft: 700, Amenities: []string{"water supply", "parking"},
			MatchScore: 78, CreatedAt: created,
		},
		{
			ID: "lst-0022", Title: "3BHK maisonette in Kupondole",
			Description:  "Duplex-style flat near the Bagmati corridor, two balconies.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 58000,
			Location: "Kupondole", City: "Lalitpur", Bedrooms: 3, Bathrooms: 2,
			AreaSqft: 1500, Amenities: []string{"balcony", "parking", "solar water"},
			MatchScore: 88, CreatedAt: created,
		},
		{
			ID: "lst-0023", Title: "House with shop frontage in Jorpati",
			Description:  "Mixed-use house, ground floor shop plus two residential floors.",
			PropertyType: TypeHouse, ListingType: ForSale, Price: 36000000,
			Location: "Jorpati", City: "Kathmandu", Bedrooms: 4, Bathrooms: 3,
			AreaSqft: 2800, Amenities: []string{"shop frontage", "parking", "roof terrace"},
			MatchScore: 81, CreatedAt: created,
		},
		{
			ID: "lst-0024", Title: "Affordable 2BHK in Sitapaila",
			Description:  "New construction with modern fittings, near Sitapaila chowk.",
			PropertyType: TypeApartment, ListingType: ForRent, Price: 19000,
			Location: "Sitapaila", City: "Kathmandu", Bedrooms: 2, Bathrooms: 1,
			AreaSqft: 720, Amenities: []string{"water supply", "balcony"},
			MatchScore: 75, CreatedAt: created,
		},
	}
}
