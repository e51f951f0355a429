package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		ok       bool
	}{
		{"Plain digits", "1234567", 1234567, true},
		{"Dotted thousands with currency", "1.234.567đ", 1234567, true},
		{"Spaces around symbol", "1.234.567 đ", 1234567, true},
		{"Comma separators", "199,000 VND", 199000, true},
		{"Decimal point discarded", "12.50", 1250, true},
		{"Meta tag value", "24990000", 24990000, true},
		{"Empty", "", 0, false},
		{"Currency symbol only", "đ", 0, false},
		{"Whitespace only", "   ", 0, false},
		{"No digits", "Liên hệ", 0, false},
		{"Multiple numbers concatenate", "was 100 now 50", 10050, true},
		{"Overflow", "999999999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, ok := ParsePrice(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, price)
		})
	}
}
