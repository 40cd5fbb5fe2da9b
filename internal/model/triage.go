package model

import "strings"

// Category is the triage classification. The set is closed and
// severity-ordered; SeverityRank gives the ordering.
type Category string

const (
	CategoryMalware           Category = "Malware"
	CategoryCEOFraud          Category = "CEO Fraud"
	CategorySextortion        Category = "Sextortion"
	CategoryPhishing          Category = "Phishing"
	CategoryOtherSuspicious   Category = "Other Suspicious"
	CategorySpam              Category = "Spam"
	CategoryMarketing         Category = "Marketing"
	CategoryInternal          Category = "Internal"
	CategorySecurityAwareness Category = "Security Awareness"
	CategoryBenign            Category = "Benign"
)

// AllCategories lists the declared categories from highest severity to lowest.
func AllCategories() []Category {
	return []Category{
		CategoryMalware,
		CategoryCEOFraud,
		CategorySextortion,
		CategoryPhishing,
		CategoryOtherSuspicious,
		CategorySpam,
		CategoryMarketing,
		CategoryInternal,
		CategorySecurityAwareness,
		CategoryBenign,
	}
}

// SeverityRank returns the category's position in the severity order,
// 0 being the most severe. Unknown categories rank below everything.
func (c Category) SeverityRank() int {
	for i, cat := range AllCategories() {
		if cat == c {
			return i
		}
	}
	return len(AllCategories())
}

// ParseCategory maps a raw category string onto the closed set,
// case-insensitively and tolerating underscore separators. Returns
// ("", false) when the value matches no declared member.
func ParseCategory(raw string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	for _, cat := range AllCategories() {
		if strings.ToLower(string(cat)) == normalized {
			return cat, true
		}
	}
	return "", false
}

// TriageVerdict is the triage stage output: exactly one category plus a
// justification referencing at least one concrete upstream signal.
type TriageVerdict struct {
	Category   Category `json:"category"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`

	Email EmailRecord `json:"-"`
}
