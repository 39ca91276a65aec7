package listings

import "testing"

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Criteria
	}{
		{
			name:  "full search query",
			query: "Find me a 2BHK apartment in Kathmandu under NPR 30,000",
			want: Criteria{
				Location:     "Kathmandu",
				PropertyType: TypeApartment,
				MaxPrice:     30000,
				Bedrooms:     2,
			},
		},
		{
			name:  "budget range",
			query: "Looking for a flat with budget of 20,000 to 35,000",
			want: Criteria{
				PropertyType: TypeApartment,
				MinPrice:     20000,
				MaxPrice:     35000,
			},
		},
		{
			name:  "budget range with dash and k suffix",
			query: "budget 20k-35k for a flat",
			want: Criteria{
				PropertyType: TypeApartment,
				MinPrice:     20000,
				MaxPrice:     35000,
			},
		},
		{
			name:  "reversed range is swapped",
			query: "flat with budget of 50000 to 30000",
			want: Criteria{
				PropertyType: TypeApartment,
				MinPrice:     30000,
				MaxPrice:     50000,
			},
		},
		{
			name:  "crore magnitude",
			query: "house under 1.5 crore in Budhanilkantha",
			want: Criteria{
				Location:     "Budhanilkantha",
				PropertyType: TypeHouse,
				MaxPrice:     15000000,
			},
		},
		{
			name:  "lakh magnitude as lower bound",
			query: "land above 50 lakh in Imadol",
			want: Criteria{
				Location:     "Imadol",
				PropertyType: TypeLand,
				MinPrice:     5000000,
			},
		},
		{
			name:  "starting from with k suffix",
			query: "apartment starting from 45k rupees",
			want: Criteria{
				PropertyType: TypeApartment,
				MinPrice:     45000,
			},
		},
		{
			name:  "bare budget",
			query: "flat in Chabahil, budget 18000",
			want: Criteria{
				Location:     "Chabahil",
				PropertyType: TypeApartment,
				MaxPrice:     18000,
			},
		},
		{
			name:  "postfix currency amount",
			query: "2 bedroom flat 25,000 NPR monthly",
			want: Criteria{
				PropertyType: TypeApartment,
				MaxPrice:     25000,
				Bedrooms:     2,
			},
		},
		{
			name:  "spelled bedroom count",
			query: "three bedroom house for rent in Bhaisepati",
			want: Criteria{
				Location:     "Bhaisepati",
				PropertyType: TypeHouse,
				ListingType:  ForRent,
				Bedrooms:     3,
			},
		},
		{
			name:  "buy intent",
			query: "want to buy a house in Tokha",
			want: Criteria{
				Location:     "Tokha",
				PropertyType: TypeHouse,
				ListingType:  ForSale,
			},
		},
		{
			name:  "to let intent",
			query: "house to let in Kirtipur",
			want: Criteria{
				Location:     "Kirtipur",
				PropertyType: TypeHouse,
				ListingType:  ForRent,
			},
		},
		{
			name:  "gazetteer fallback without preposition",
			query: "baneshwor flat wanted urgently",
			want: Criteria{
				Location:     "Baneshwor",
				PropertyType: TypeApartment,
			},
		},
		{
			name:  "multi-word gazetteer entry wins over suffix",
			query: "new baneshwor flat needed",
			want: Criteria{
				Location:     "New Baneshwor",
				PropertyType: TypeApartment,
			},
		},
		{
			name:  "location capture stops at stopword",
			query: "apartment near Patan under 30k",
			want: Criteria{
				Location:     "Patan",
				PropertyType: TypeApartment,
				MaxPrice:     30000,
			},
		},
		{
			name:  "rent does not fire inside parents",
			query: "my parents need a house",
			want: Criteria{
				PropertyType: TypeHouse,
			},
		},
		{
			name:  "flat does not fire inside inflation",
			query: "inflation is high, looking for land",
			want: Criteria{
				PropertyType: TypeLand,
			},
		},
		{
			name:  "sale does not fire inside wholesale",
			query: "house close to the wholesale market",
			want: Criteria{
				PropertyType: TypeHouse,
			},
		},
		{
			name:  "small amounts are not prices",
			query: "room under 500",
			want:  Criteria{},
		},
		{
			name:  "implausible bedroom count ignored",
			query: "25 bedrooms mansion",
			want:  Criteria{},
		},
		{
			name:  "commercial keywords",
			query: "office space for rent in Tinkune",
			want: Criteria{
				Location:     "Tinkune",
				PropertyType: TypeCommercial,
				ListingType:  ForRent,
			},
		},
		{
			name:  "no signal",
			query: "hello there",
			want:  Criteria{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCriteria(tt.query)
			if got != tt.want {
				t.Errorf("ParseCriteria(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		num  string
		unit string
		want int64
	}{
		{"30,000", "", 30000},
		{"45", "k", 45000},
		{"1.5", "crore", 15000000},
		{"50", "lakh", 5000000},
		{"2.5", "k", 2500},
		{"garbage", "", 0},
	}

	for _, tt := range tests {
		if got := parseAmount(tt.num, tt.unit); got != tt.want {
			t.Errorf("parseAmount(%q, %q) = %d, want %d", tt.num, tt.unit, got, tt.want)
		}
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		s      string
		phrase string
		want   bool
	}{
		{"flat for rent", "rent", true},
		{"my parents house", "rent", false},
		{"inflation data", "flat", false},
		{"to let in patan", "to let", true},
		{"rent", "rent", true},
		{"different rental terms", "rental", true},
		{"wholesale prices", "sale", false},
	}

	for _, tt := range tests {
		if got := containsWord(tt.s, tt.phrase); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.s, tt.phrase, got, tt.want)
		}
	}
}

func TestCriteriaEmpty(t *testing.T) {
	if !(Criteria{}).Empty() {
		t.Error("zero criteria should be empty")
	}
	if (Criteria{Location: "Patan"}).Empty() {
		t.Error("criteria with location should not be empty")
	}
	if (Criteria{MaxPrice: 30000}).Empty() {
		t.Error("criteria with price bound should not be empty")
	}
}
