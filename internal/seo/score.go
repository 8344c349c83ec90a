package seo

import "time"

// PerformanceScore maps payload size and load time onto 0..100. A zero load
// time means unknown and carries no penalty.
func PerformanceScore(sizeBytes int, loadTime time.Duration) int {
	score := 100
	switch {
	case sizeBytes <= 100*1024:
	case sizeBytes <= 500*1024:
		score -= 10
	case sizeBytes <= 1024*1024:
		score -= 20
	case sizeBytes <= 3*1024*1024:
		score -= 35
	default:
		score -= 50
	}
	switch {
	case loadTime <= time.Second:
	case loadTime <= 2500*time.Millisecond:
		score -= 10
	case loadTime <= 4*time.Second:
		score -= 25
	case loadTime <= 8*time.Second:
		score -= 40
	default:
		score -= 50
	}
	return clamp(score)
}

func score(a *Audit) {
	a.PerformanceScore = PerformanceScore(a.PageSize, time.Duration(a.LoadTimeMs)*time.Millisecond)
	a.SEOScore = seoScore(a)
	a.AccessibilityScore = accessibilityScore(a)
}

func seoScore(a *Audit) int {
	s := 100
	if !a.HasTitle {
		s -= 20
	} else if a.TitleTooLong || a.TitleTooShort {
		s -= 5
	}
	if !a.HasMetaDescription {
		s -= 15
	} else if a.MetaDescriptionTooLong || a.MetaDescriptionTooShort {
		s -= 5
	}
	if a.MissingH1 {
		s -= 15
	} else if a.HasMultipleH1 {
		s -= 5
	}
	if !a.HasCanonical {
		s -= 5
	}
	if !a.IsIndexable {
		s -= 20
	}
	if !a.HasViewport {
		s -= 5
	}
	if !a.IsHTTPS {
		s -= 10
	}
	s -= min(10, 2*a.ImagesWithoutAlt)
	if !a.HasStructuredData {
		s -= 5
	}
	if !a.HasOpenGraph {
		s -= 5
	}
	return clamp(s)
}

func accessibilityScore(a *Audit) int {
	s := 100
	if a.TotalImages > 0 {
		s -= (40*a.ImagesWithoutAlt + a.TotalImages/2) / a.TotalImages
	}
	if !a.HasLang {
		s -= 15
	}
	if !a.HasTitle {
		s -= 15
	}
	if !a.HasViewport {
		s -= 10
	}
	if a.MissingH1 {
		s -= 10
	}
	s -= min(10, 2*a.LinksWithoutText)
	return clamp(s)
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
