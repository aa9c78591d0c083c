package core

// Verdict is the result of classifying one code submission.
//
// Zero-tolerance policy: any triggered category yields critical severity and
// a ban recommendation. There is no graduated response.
type Verdict struct {
	// IsMalicious is true iff at least one category triggered.
	IsMalicious bool `json:"is_malicious"`
	// Threats lists the triggered categories, each at most once.
	Threats []ThreatCategory `json:"threats"`
	// Severity is critical whenever IsMalicious is true, low otherwise.
	Severity Severity `json:"severity"`
	// ShouldBan mirrors IsMalicious under the zero-tolerance policy.
	ShouldBan bool `json:"should_ban"`
	// MatchedSnippets lists the literal matched substrings, deduplicated.
	MatchedSnippets []string `json:"matched_snippets"`
}

// Classify scans code against the catalog and produces a verdict.
//
// Per category, rules are evaluated in order and matching stops at the first
// hit; remaining rules in an already-triggered category are not checked.
// Classification is pure and deterministic: it performs no I/O and the same
// input always yields the same verdict.
func (c *Catalog) Classify(code string) *Verdict {
	threats := make([]ThreatCategory, 0, 4)
	snippets := make([]string, 0, 4)
	seen := make(map[string]bool, 4)

	for _, category := range c.categories {
		for _, rule := range c.rules[category] {
			loc := rule.Compiled.FindStringIndex(code)
			if loc == nil {
				continue
			}
			threats = append(threats, category)
			snippet := code[loc[0]:loc[1]]
			if !seen[snippet] {
				seen[snippet] = true
				snippets = append(snippets, snippet)
			}
			break
		}
	}

	isMalicious := len(threats) > 0
	severity := SeverityLow
	if isMalicious {
		severity = SeverityCritical
	}

	return &Verdict{
		IsMalicious:     isMalicious,
		Threats:         threats,
		Severity:        severity,
		ShouldBan:       isMalicious,
		MatchedSnippets: snippets,
	}
}

// Classify is a convenience function using the default catalog.
func Classify(code string) *Verdict {
	return defaultCatalog.Classify(code)
}
