package crawl

import "errors"

// ErrPageLoad marks a city listing page that could not be reached or
// never stabilized. The orchestrator absorbs it: the city is skipped
// this run and retried in full on the next one.
var ErrPageLoad = errors.New("listing page load failed")
