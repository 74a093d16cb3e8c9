package market

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrCityListMissing indicates the reference city list could not be read.
// Planning cannot proceed without it.
var ErrCityListMissing = errors.New("city reference list missing")

// CityList holds the reference cities in insertion order, keyed by
// normalized city key. Duplicate keys keep the last label seen.
type CityList struct {
	order  []string
	labels map[string]string
}

// LoadCityList reads the newline-delimited reference file. Each line's
// content up to the first comma is the raw city label; blank entries are
// skipped.
func LoadCityList(path string) (*CityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCityListMissing, path, err)
	}
	defer f.Close()

	list := &CityList{labels: make(map[string]string)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		label, _, _ := strings.Cut(scanner.Text(), ",")
		label = strings.TrimSpace(label)
		key := NormalizeKey(label)
		if key == "" {
			continue
		}
		if _, seen := list.labels[key]; !seen {
			list.order = append(list.order, key)
		}
		list.labels[key] = label
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read city list %s: %w", path, err)
	}
	return list, nil
}

// Keys returns the normalized keys in reference-list order.
func (l *CityList) Keys() []string {
	return append([]string(nil), l.order...)
}

// City resolves a normalized key to its City, reporting whether the key
// exists in the reference list.
func (l *CityList) City(key string) (City, bool) {
	label, ok := l.labels[key]
	if !ok {
		return City{}, false
	}
	return City{Label: label, Key: key}, true
}

// Len reports the number of distinct cities.
func (l *CityList) Len() int {
	return len(l.order)
}
