package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
)

func testExtractConfig() ExtractConfig {
	return ExtractConfig{SettleDelay: time.Millisecond}
}

func detailTexts() map[string]string {
	texts := make(map[string]string, len(detailLocators))
	for _, fl := range detailLocators {
		texts[fl.Locator] = "value for " + fl.Field
	}
	return texts
}

func TestExtractAllFields(t *testing.T) {
	t.Parallel()

	session := &fakeSession{texts: detailTexts()}
	e := NewDetailExtractor(&fakeRenderer{sessions: []*fakeSession{session}},
		testExtractConfig(), zap.NewNop())

	record := e.Extract(context.Background(), "https://www.carwale.com/used/cars/001")
	require.Len(t, record, len(market.DetailFields))
	for _, field := range market.DetailFields {
		assert.Equal(t, "value for "+field, record[field])
	}
	assert.True(t, session.closed)
}

func TestExtractMissingFieldKeepsOthers(t *testing.T) {
	t.Parallel()

	texts := detailTexts()
	for _, fl := range detailLocators {
		if fl.Field == "Insurance" {
			delete(texts, fl.Locator)
		}
	}
	session := &fakeSession{texts: texts}
	e := NewDetailExtractor(&fakeRenderer{sessions: []*fakeSession{session}},
		testExtractConfig(), zap.NewNop())

	record := e.Extract(context.Background(), "https://www.carwale.com/used/cars/002")
	assert.Equal(t, market.NotAvailable, record["Insurance"])
	assert.Equal(t, "value for Price", record["Price"])
	assert.Equal(t, "value for Kilometers Driven", record["Kilometers Driven"])
}

func TestExtractBlankTextCountsAsMiss(t *testing.T) {
	t.Parallel()

	texts := detailTexts()
	for _, fl := range detailLocators {
		if fl.Field == "Price" {
			texts[fl.Locator] = "   "
		}
	}
	session := &fakeSession{texts: texts}
	e := NewDetailExtractor(&fakeRenderer{sessions: []*fakeSession{session}},
		testExtractConfig(), zap.NewNop())

	record := e.Extract(context.Background(), "https://www.carwale.com/used/cars/003")
	assert.Equal(t, market.NotAvailable, record["Price"])
}

func TestExtractSessionOpenFailureYieldsSentinels(t *testing.T) {
	t.Parallel()

	e := NewDetailExtractor(&fakeRenderer{err: errors.New("browser gone")},
		testExtractConfig(), zap.NewNop())

	record := e.Extract(context.Background(), "https://www.carwale.com/used/cars/004")
	require.Len(t, record, len(market.DetailFields))
	for _, field := range market.DetailFields {
		assert.Equal(t, market.NotAvailable, record[field])
	}
}

func TestExtractNavigateFailureYieldsSentinels(t *testing.T) {
	t.Parallel()

	session := &fakeSession{texts: detailTexts(), navErr: errors.New("net::ERR_TIMED_OUT")}
	e := NewDetailExtractor(&fakeRenderer{sessions: []*fakeSession{session}},
		testExtractConfig(), zap.NewNop())

	record := e.Extract(context.Background(), "https://www.carwale.com/used/cars/005")
	for _, field := range market.DetailFields {
		assert.Equal(t, market.NotAvailable, record[field])
	}
	assert.True(t, session.closed, "session must be released after navigate failure")
}
