package app

import (
	"fmt"
	"sync"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"

	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
)

const (
	DEDUP_FILTER_CAPACITY          = 100000
	DEDUP_FALSE_POSITIVE_RATE      = 0.001
	DEDUP_MAXIMUM_PERCENTAGE_USAGE = 80
)

// DuplicateFilter remembers which readings were already handled per site.
// Polls run more often than Nightscout produces readings, so most fetched
// entries are repeats.
type DuplicateFilter struct {
	mutex                 sync.Mutex
	filters               map[string]*bloomFilter.BloomFilter
	capacity              uint
	falsePositiveRate     float64
	maximumPercentageUsed float32
}

func NewDuplicateFilter(capacity uint, falsePositiveRate float64, maximumPercentageUsed float32) *DuplicateFilter {
	return &DuplicateFilter{
		filters:               make(map[string]*bloomFilter.BloomFilter),
		capacity:              capacity,
		falsePositiveRate:     falsePositiveRate,
		maximumPercentageUsed: maximumPercentageUsed,
	}
}

// Seen reports whether the entry was handled before for the site and
// records it otherwise. Entries without a sensor reading are never
// recorded.
func (f *DuplicateFilter) Seen(site string, entry watch.WatchEntry) bool {
	if entry.SensorGlucoseValue == nil {
		return false
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	filter, ok := f.filters[site]
	if !ok {
		filter = bloomFilter.NewWithEstimates(f.capacity, f.falsePositiveRate)
		f.filters[site] = filter
	}

	key := []byte(readingKey(entry))
	if filter.Test(key) {
		return true
	}

	f.resetWhenFull(filter)
	filter.Add(key)

	return false
}

// Forget drops the filter of a site, so its next entry is handled again.
func (f *DuplicateFilter) Forget(site string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	delete(f.filters, site)
}

func (f *DuplicateFilter) resetWhenFull(filter *bloomFilter.BloomFilter) {
	percentageUsed := float32(filter.ApproximatedSize()) / float32(f.capacity) * 100
	if percentageUsed >= f.maximumPercentageUsed {
		filter.ClearAll()
	}
}

func readingKey(entry watch.WatchEntry) string {
	return fmt.Sprintf("%d_%d", entry.Timestamp.Unix(), entry.SensorGlucoseValue.SGV)
}
