package crawl

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
	"github.com/marketharvest/carharvest/internal/progress"
)

const testBaseURL = "https://www.carwale.com"

func pageURL(key string) string {
	return fmt.Sprintf("%s/used/%s/", testBaseURL, key)
}

func TestOrchestratorProcessesCitiesInPlanOrder(t *testing.T) {
	t.Parallel()

	cities := []market.City{market.NewCity("mumbai"), market.NewCity("pune")}
	discoverer := &fakeDiscoverer{listings: map[string][]market.Listing{
		pageURL("mumbai"): makeListings(2),
		pageURL("pune"):   makeListings(1),
	}}
	scheduler := &fakeScheduler{}
	o := NewOrchestrator(&fakePlanner{cities: cities}, discoverer, scheduler, nil,
		OrchestratorConfig{BaseURL: testBaseURL}, zap.NewNop())

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []string{pageURL("mumbai"), pageURL("pune")}, discoverer.urls)
	assert.Equal(t, []string{"mumbai", "pune"}, scheduler.runs)
}

func TestOrchestratorSkipsFailedCityAndContinues(t *testing.T) {
	t.Parallel()

	cities := []market.City{market.NewCity("mumbai"), market.NewCity("pune")}
	discoverer := &fakeDiscoverer{
		listings: map[string][]market.Listing{pageURL("pune"): makeListings(1)},
		failFor: map[string]error{
			pageURL("mumbai"): fmt.Errorf("%w: timeout", ErrPageLoad),
		},
	}
	scheduler := &fakeScheduler{}
	o := NewOrchestrator(&fakePlanner{cities: cities}, discoverer, scheduler, nil,
		OrchestratorConfig{BaseURL: testBaseURL}, zap.NewNop())

	require.NoError(t, o.Run(context.Background()))
	// no rows scheduled for the failed city, so it is retried next run
	assert.Equal(t, []string{"pune"}, scheduler.runs)
}

func TestOrchestratorHaltsOnStoreFailure(t *testing.T) {
	t.Parallel()

	cities := []market.City{
		market.NewCity("mumbai"), market.NewCity("pune"), market.NewCity("jaipur"),
	}
	discoverer := &fakeDiscoverer{listings: map[string][]market.Listing{
		pageURL("mumbai"): makeListings(1),
		pageURL("pune"):   makeListings(1),
		pageURL("jaipur"): makeListings(1),
	}}
	scheduler := &fakeScheduler{failOn: "pune"}
	o := NewOrchestrator(&fakePlanner{cities: cities}, discoverer, scheduler, nil,
		OrchestratorConfig{BaseURL: testBaseURL}, zap.NewNop())

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pune")
	// jaipur was never attempted
	assert.Equal(t, []string{"mumbai", "pune"}, scheduler.runs)
}

func TestOrchestratorPlanFailureIsFatal(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(&fakePlanner{err: market.ErrCityListMissing},
		&fakeDiscoverer{}, &fakeScheduler{}, nil,
		OrchestratorConfig{BaseURL: testBaseURL}, zap.NewNop())
	require.ErrorIs(t, o.Run(context.Background()), market.ErrCityListMissing)
}

func TestOrchestratorEventLifecycle(t *testing.T) {
	t.Parallel()

	cities := []market.City{market.NewCity("mumbai"), market.NewCity("agra")}
	discoverer := &fakeDiscoverer{
		listings: map[string][]market.Listing{pageURL("mumbai"): makeListings(3)},
		failFor: map[string]error{
			pageURL("agra"): fmt.Errorf("%w: dns", ErrPageLoad),
		},
	}
	var stages []progress.Stage
	emitter := emitterFunc(func(evt progress.Event) { stages = append(stages, evt.Stage) })
	o := NewOrchestrator(&fakePlanner{cities: cities}, discoverer, &fakeScheduler{}, emitter,
		OrchestratorConfig{BaseURL: testBaseURL}, zap.NewNop())

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []progress.Stage{
		progress.StageRunStart,
		progress.StageCityStart,
		progress.StageCityDiscovered,
		progress.StageCityDone,
		progress.StageCityStart,
		progress.StageCityFailed,
		progress.StageRunDone,
	}, stages)
}

// Two sequential cities must never interleave store appends: city B's
// first flush happens-after city A's last. Uses the real scheduler.
func TestOrchestratorWriteIsolationAcrossCities(t *testing.T) {
	t.Parallel()

	st := &recordingStore{}
	sched := NewBatchScheduler(&fakeExtractor{}, st, nil,
		SchedulerConfig{PoolWidth: 3, FlushThreshold: 4}, zap.NewNop())

	cities := []market.City{market.NewCity("mumbai"), market.NewCity("pune")}
	discoverer := &fakeDiscoverer{listings: map[string][]market.Listing{
		pageURL("mumbai"): makeListings(10),
		pageURL("pune"):   makeListings(6),
	}}
	o := NewOrchestrator(&fakePlanner{cities: cities}, discoverer, sched, nil,
		OrchestratorConfig{BaseURL: testBaseURL}, zap.NewNop())

	require.NoError(t, o.Run(context.Background()))

	var citySeq []string
	for _, batch := range st.batches {
		for _, row := range batch {
			citySeq = append(citySeq, row.City.Key)
		}
	}
	require.Len(t, citySeq, 16)
	assert.Equal(t, "mumbai", citySeq[0])
	assert.Equal(t, "pune", citySeq[len(citySeq)-1])
	switched := false
	for _, key := range citySeq {
		if key == "pune" {
			switched = true
		}
		if switched {
			assert.Equal(t, "pune", key, "append from mumbai after pune began")
		}
	}
}
