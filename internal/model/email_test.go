package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailRecord_HeaderValue(t *testing.T) {
	email := EmailRecord{Headers: []Header{
		{Name: "From", Value: "alice@example.com"},
		{Name: "X-Custom", Value: ""},
		{Name: "Received", Value: "first hop"},
		{Name: "Received", Value: "second hop"},
	}}

	v, ok := email.HeaderValue("from")
	assert.True(t, ok)
	assert.Equal(t, "alice@example.com", v)

	// Empty header value is still present.
	v, ok = email.HeaderValue("X-CUSTOM")
	assert.True(t, ok)
	assert.Empty(t, v)

	// First match wins for repeated headers.
	v, ok = email.HeaderValue("Received")
	assert.True(t, ok)
	assert.Equal(t, "first hop", v)

	_, ok = email.HeaderValue("List-Unsubscribe")
	assert.False(t, ok)
}

func TestEmailRecord_HasEngineIndicators(t *testing.T) {
	clean := ScanVerdict{Engine: "engine-a", Result: ScanResultClean}
	malicious := ScanVerdict{Engine: "engine-b", Result: ScanResultMalicious}
	errored := ScanVerdict{Engine: "engine-c", Result: ScanResultError}

	tests := []struct {
		name  string
		email EmailRecord
		want  bool
	}{
		{"no scans at all", EmailRecord{}, false},
		{"all clean", EmailRecord{
			URLs: []ScannedURL{{URL: "https://a.test", Verdicts: []ScanVerdict{clean}}},
			IPs:  []ScannedIP{{IP: "203.0.113.5", Verdicts: []ScanVerdict{clean}}},
		}, false},
		{"malicious url", EmailRecord{
			URLs: []ScannedURL{{URL: "https://a.test", Verdicts: []ScanVerdict{clean, malicious}}},
		}, true},
		{"flagged attachment", EmailRecord{
			Attachments: []ScannedAttachment{{FileName: "invoice.zip", Verdicts: []ScanVerdict{malicious}}},
		}, true},
		{"error verdict counts as not clean", EmailRecord{
			IPs: []ScannedIP{{IP: "203.0.113.5", Verdicts: []ScanVerdict{errored}}},
		}, true},
		{"scanned items without verdicts", EmailRecord{
			URLs: []ScannedURL{{URL: "https://a.test"}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.email.HasEngineIndicators())
		})
	}
}

func TestScanVerdict_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want ScanResult
	}{
		{`{"engine":"a","result":"clean"}`, ScanResultClean},
		{`{"engine":"a","result":"Harmless"}`, ScanResultClean},
		{`{"engine":"a","result":"MALICIOUS"}`, ScanResultMalicious},
		{`{"engine":"a","result":"phish"}`, ScanResultPhishing},
		{`{"engine":"a","result":"suspicious"}`, ScanResultPhishing},
		{`{"engine":"a","result":"quarantined"}`, ScanResultError},
		{`{"engine":"a","result":""}`, ScanResultError},
	}
	for _, tt := range tests {
		var v ScanVerdict
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
		assert.Equal(t, "a", v.Engine)
		assert.Equal(t, tt.want, v.Result, "raw %s", tt.raw)
	}
}

func TestScanVerdict_Flagged(t *testing.T) {
	assert.True(t, ScanVerdict{Result: ScanResultMalicious}.Flagged())
	assert.True(t, ScanVerdict{Result: ScanResultPhishing}.Flagged())
	assert.False(t, ScanVerdict{Result: ScanResultClean}.Flagged())
	assert.False(t, ScanVerdict{Result: ScanResultError}.Flagged())
}
