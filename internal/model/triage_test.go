package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
		ok   bool
	}{
		{"Phishing", CategoryPhishing, true},
		{"phishing", CategoryPhishing, true},
		{"PHISHING", CategoryPhishing, true},
		{"CEO Fraud", CategoryCEOFraud, true},
		{"ceo_fraud", CategoryCEOFraud, true},
		{"other_suspicious", CategoryOtherSuspicious, true},
		{"  Security Awareness  ", CategorySecurityAwareness, true},
		{"security_awareness", CategorySecurityAwareness, true},
		{"Benign", CategoryBenign, true},
		{"malvertising", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestCategory_SeverityRank(t *testing.T) {
	// Malware is the most severe, Benign the least. The full ordering is
	// what conflict resolution leans on, so assert it completely.
	ordered := []Category{
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
	for i, cat := range ordered {
		assert.Equal(t, i, cat.SeverityRank(), "category %q", cat)
	}
	for i := 1; i < len(ordered); i++ {
		assert.Less(t, ordered[i-1].SeverityRank(), ordered[i].SeverityRank())
	}

	// Unknown categories rank below everything declared.
	assert.Equal(t, len(ordered), Category("Mystery").SeverityRank())
}
