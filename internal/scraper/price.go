package scraper

import (
	"strconv"
	"strings"
)

// ParsePrice normalizes a raw price string into an integer amount. Every
// non-digit rune is dropped, so currency symbols, whitespace, thousands
// separators and decimal points all disappear: "1.234.567 đ" and
// "1234567" both yield 1234567. The boolean is false when the text holds
// no digits at all or the digit string overflows int64 — failure is
// never reported as zero.
//
// Texts embedding several numbers ("was 100 now 50") concatenate their
// digits in encounter order.
func ParsePrice(text string) (int64, bool) {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	if digits.Len() == 0 {
		return 0, false
	}

	price, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, false
	}

	return price, true
}
