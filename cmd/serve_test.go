package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAnalysisRequest(t *testing.T) {
	longID := strings.Repeat("x", 129)
	longToken := strings.Repeat("x", 4097)

	tests := []struct {
		name       string
		id         string
		token      string
		baseURL    string
		wantFields []string
	}{
		{"valid without base url", "email-1", "token", "", nil},
		{"valid with base url", "email-1", "token", "https://api.example.com", nil},
		{"missing id", "", "token", "", []string{"id"}},
		{"id too long", longID, "token", "", []string{"id"}},
		{"missing token", "email-1", "", "", []string{"accessToken"}},
		{"token too long", "email-1", longToken, "", []string{"accessToken"}},
		{"relative base url", "email-1", "token", "not-a-url", []string{"apiBaseUrl"}},
		{"base url without host", "email-1", "token", "https://", []string{"apiBaseUrl"}},
		{"everything wrong", "", "", "::broken", []string{"id", "accessToken", "apiBaseUrl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validateAnalysisRequest(tt.id, tt.token, tt.baseURL)
			if tt.wantFields == nil {
				assert.Nil(t, fields)
				return
			}
			assert.Len(t, fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "12345678", truncateID("123456789abcdef"))
}
