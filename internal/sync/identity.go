package sync

import (
	"regexp"
	"strings"
)

// brandNames normalizes well-known employers whose sender headers vary a lot
// ("Google Careers", "noreply@google.com", ...).
var brandNames = []struct {
	substr string
	name   string
}{
	{"mongodb", "MongoDB"},
	{"microsoft", "Microsoft"},
	{"google", "Google"},
	{"amazon", "Amazon"},
	{"meta", "Meta"},
	{"apple", "Apple"},
}

var roleSuffixPattern = regexp.MustCompile(`(?i)\s*(recruiting|hr|careers|jobs|talent|hiring|team)\s*$`)

// ResolveCompany derives a normalized company name from a From header. It is
// heuristic and lossy on purpose: it only has to group one applicant's own
// records from the same employer.
func ResolveCompany(sender string) string {
	company := sender
	if i := strings.Index(company, "<"); i >= 0 {
		company = company[:i]
	}
	company = strings.Trim(strings.TrimSpace(company), `"`)
	company = strings.TrimSpace(roleSuffixPattern.ReplaceAllString(company, ""))

	lower := strings.ToLower(company)
	for _, b := range brandNames {
		if strings.Contains(lower, b.substr) {
			return b.name
		}
	}

	if company == "" {
		return sender
	}
	return company
}

// CompanyMatcher decides whether a stored record belongs to a company name
// resolved from a message. Kept behind an interface so the rule-based
// implementation can be swapped for a stronger matcher without touching the
// sync engine.
type CompanyMatcher interface {
	Match(recordCompany, companyName string) bool
}

// RuleMatcher is the concrete string-rule matcher.
//
// A record matches when its company field contains the name, or, for
// multi-word names, when every word longer than two characters appears in the
// field. The all-words rule catches legal-entity variants ("Example Corp." vs
// "Example"). Single-word generic names ("Meta") can false-positive on
// substrings; documented heuristic risk, not tightened here.
type RuleMatcher struct{}

// knownVariants are alternate spellings that appear in stored records.
var knownVariants = [][2]string{
	{"mongodb", "mongo"},
	{"microsoft", "msft"},
	{"google", "alphabet"},
}

func (RuleMatcher) Match(recordCompany, companyName string) bool {
	record := strings.ToLower(recordCompany)
	name := strings.ToLower(strings.TrimSpace(companyName))
	if name == "" {
		return false
	}

	if strings.Contains(record, name) {
		return true
	}

	words := significantWords(name)
	if len(words) > 1 {
		all := true
		for _, w := range words {
			if !strings.Contains(record, w) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}

	for _, v := range knownVariants {
		if strings.Contains(name, v[0]) && strings.Contains(record, v[1]) {
			return true
		}
	}

	return false
}

func significantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}
