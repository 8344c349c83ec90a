package crawler

import "time"

// computeStats derives the aggregate figures for a finished job.
func computeStats(pages []CrawledPage, errs []CrawlError) *CrawlStats {
	stats := &CrawlStats{}
	if total := len(pages) + len(errs); total > 0 {
		stats.SuccessRate = float64(len(pages)) / float64(total)
	}
	if len(pages) == 0 {
		return stats
	}
	var load time.Duration
	var scoreSum float64
	audited := 0
	for i := range pages {
		load += pages[i].LoadTime
		if pages[i].SEO != nil {
			scoreSum += float64(pages[i].SEO.PerformanceScore)
			audited++
		}
	}
	stats.AvgLoadTime = load / time.Duration(len(pages))
	if audited > 0 {
		stats.AvgPerformanceScore = scoreSum / float64(audited)
	}
	return stats
}

// estimateRemaining projects elapsed/processed*(maxPages-processed). It is
// nil until at least one page has been processed.
func estimateRemaining(elapsed time.Duration, processed, maxPages int) *time.Duration {
	if processed <= 0 {
		return nil
	}
	remaining := maxPages - processed
	if remaining < 0 {
		remaining = 0
	}
	eta := time.Duration(float64(elapsed) / float64(processed) * float64(remaining))
	return &eta
}
