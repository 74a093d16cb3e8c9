package crawl

// Structural signatures for the marketplace pages. The listing container
// classes are obfuscated build artifacts and change when the site ships a
// new frontend; keep them in one place.
const (
	// ListingContainerSelector matches one vehicle card on a city
	// listing page.
	ListingContainerSelector = "li.o-C.o-jA.o-co.o-bS"
	// listingNameSelector and listingLinkSelector are resolved inside a
	// container.
	listingNameSelector = "h3"
	listingLinkSelector = "a"
)

// fieldLocator pairs a detail field with the XPath used to find it on a
// detail page.
type fieldLocator struct {
	Field   string
	Locator string
}

// detailLocators lists all ten detail fields in persisted order. Each is
// attempted independently; a miss yields the sentinel, never an error.
var detailLocators = []fieldLocator{
	{"Price", `//div[contains(text(), '₹')]`},
	{"Kilometers Driven", `//div[contains(text(), 'km')]`},
	{"Transmission", `//div[contains(text(), 'Manual') or contains(text(), 'Automatic')]`},
	{"Fuel Type", `//div[contains(text(), 'Petrol') or contains(text(), 'Diesel') or contains(text(), 'CNG') or contains(text(), 'Electric')]`},
	{"Manufacturing Year", `//span[contains(text(), 'Manufacturing year')]/../../div[last()]`},
	{"Number of Owners", `//span[contains(text(), 'Owner') or contains(text(), 'owners')]/../../div[last()]`},
	{"Color", `//span[contains(text(), 'Color')]/../../div[last()]`},
	{"Car Available At", `//span[contains(text(), 'Available')]/../../div[last()]`},
	{"Insurance", `//span[contains(text(), 'Insurance')]/../../div[last()]`},
	{"Registration", `//span[contains(text(), 'Registration')]/../../div[last()]`},
}
