// Package market defines the domain types shared across the harvester:
// cities, discovered listings, extracted detail records, and the row
// format persisted to the tabular store.
package market

import (
	"fmt"
	"strings"
	"unicode"
)

// NotAvailable is the sentinel stored for any detail field that could not
// be located on a listing's detail page.
const NotAvailable = "Not Available"

// DetailFields enumerates the detail-page attributes in their persisted
// order. Every DetailRecord carries exactly these keys.
var DetailFields = []string{
	"Price",
	"Kilometers Driven",
	"Transmission",
	"Fuel Type",
	"Manufacturing Year",
	"Number of Owners",
	"Color",
	"Car Available At",
	"Insurance",
	"Registration",
}

// Columns is the fixed header of the tabular store: city and listing
// identity, the detail fields, and the source URL.
var Columns = buildColumns()

func buildColumns() []string {
	cols := make([]string, 0, len(DetailFields)+3)
	cols = append(cols, "City", "Car Name")
	cols = append(cols, DetailFields...)
	cols = append(cols, "URL")
	return cols
}

// City is one market unit of crawling. Key is the identity used for
// de-duplication and completion lookup; Label is the raw reference-list
// spelling.
type City struct {
	Label string
	Key   string
}

// NewCity derives the normalized key from a raw label.
func NewCity(label string) City {
	return City{Label: strings.TrimSpace(label), Key: NormalizeKey(label)}
}

// NormalizeKey lowercases a city label and strips every non-alphabetic
// rune, so "New Delhi" and "new-delhi " collapse to "newdelhi".
func NormalizeKey(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DisplayName is the city value written into store rows: the normalized
// key with its first rune upper-cased. Progress lookup lowercases the
// column again, so the round trip is exact.
func (c City) DisplayName() string {
	if c.Key == "" {
		return ""
	}
	runes := []rune(c.Key)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// ListingPageURL builds the city's used-car listing page URL.
func (c City) ListingPageURL(baseURL string) string {
	return fmt.Sprintf("%s/used/%s/", strings.TrimRight(baseURL, "/"), c.Key)
}

// Listing is one discovered vehicle ad, pre-extraction.
type Listing struct {
	Name      string
	DetailURL string
}

// DetailRecord maps detail field names to extracted values. Missing
// fields hold NotAvailable rather than being absent.
type DetailRecord map[string]string

// NewDetailRecord returns a record with every field set to the sentinel.
func NewDetailRecord() DetailRecord {
	rec := make(DetailRecord, len(DetailFields))
	for _, f := range DetailFields {
		rec[f] = NotAvailable
	}
	return rec
}

// Row is the unit persisted to the store: one listing with its city,
// extracted details, and source URL.
type Row struct {
	City    City
	Listing Listing
	Details DetailRecord
}

// NewRow pairs a listing with its extraction result.
func NewRow(city City, listing Listing, details DetailRecord) Row {
	if details == nil {
		details = NewDetailRecord()
	}
	return Row{City: city, Listing: listing, Details: details}
}

// Record flattens the row into store column order.
func (r Row) Record() []string {
	out := make([]string, 0, len(Columns))
	out = append(out, r.City.DisplayName(), r.Listing.Name)
	for _, f := range DetailFields {
		v, ok := r.Details[f]
		if !ok {
			v = NotAvailable
		}
		out = append(out, v)
	}
	out = append(out, r.Listing.DetailURL)
	return out
}
