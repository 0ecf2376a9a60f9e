package aggregate

import (
	"sort"
	"strings"
)

// geoKeywords are the geopolitical and macro terms scanned for when
// building narrative summaries.
var geoKeywords = []string{
	"inflation", "war", "china", "fed", "election", "tariffs",
	"interest rate", "recession", "trade", "sanction", "geopolitics",
	"conflict", "opec", "oil", "currency", "debt", "default", "stimulus",
	"regulation", "policy", "gdp", "unemployment", "crisis", "bank",
	"central bank", "federal reserve", "ukraine", "taiwan", "supply chain",
	"trade war", "macro",
}

// DetectKeywords returns the geopolitical/macro keywords present in
// texts, most frequent first. Matching is a case-insensitive substring
// scan, so "trade war" also counts "war" and "trade".
func DetectKeywords(texts []string) []string {
	counts := make(map[string]int)
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, kw := range geoKeywords {
			if strings.Contains(lower, kw) {
				counts[kw]++
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(counts))
	for kw := range counts {
		keywords = append(keywords, kw)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	return keywords
}
