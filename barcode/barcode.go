// Package barcode reads scanned retail barcodes: plain GTIN-8/12/13/14
// digits and GS1 element strings carrying AI (01) GTIN, (17) expiry and
// (10) lot.
package barcode

import (
	"errors"
	"fmt"
	"strings"
)

// groupSeparator (FNC1) ends a variable length field in scanner output.
const groupSeparator = '\x1d'

const maxLotLength = 20

var (
	ErrEmpty    = errors.New("barcode is empty")
	ErrNoGTIN   = errors.New("barcode carries no AI (01) GTIN")
	ErrTruncate = errors.New("barcode is truncated")
	ErrLength   = errors.New("barcode is not 8, 12, 13 or 14 digits long")
)

type Result struct {
	GTIN14 string
	// Expiry is YYYY-MM.
	Expiry string
	Lot    string
}

// Parse reads code. Codes of 15 characters or more must be GS1 element
// strings starting with AI (01); shorter codes must be GTIN-8, 12, 13 or 14
// digits and are left padded to 14.
func Parse(code string) (*Result, error) {
	code = strings.NewReplacer("(", "", ")", "").Replace(strings.TrimSpace(code))
	switch {
	case code == "":
		return nil, ErrEmpty
	case len(code) >= 15:
		if !strings.HasPrefix(code, "01") {
			return nil, ErrNoGTIN
		}
		return parseElements(code)
	case !digits(code):
		return nil, fmt.Errorf("barcode %q is not numeric", code)
	case len(code) != 8 && len(code) != 12 && len(code) != 13 && len(code) != 14:
		return nil, ErrLength
	}
	return &Result{GTIN14: strings.Repeat("0", 14-len(code)) + code}, nil
}

// parseElements stops at the first AI it does not know, since the length of
// an unknown element cannot be told from the code.
func parseElements(code string) (*Result, error) {
	res := &Result{}
elements:
	for i := 0; i < len(code); {
		if code[i] == groupSeparator {
			i++
			continue
		}
		switch {
		case strings.HasPrefix(code[i:], "01"):
			if i+16 > len(code) {
				return nil, fmt.Errorf("%w: AI (01)", ErrTruncate)
			}
			res.GTIN14 = code[i+2 : i+16]
			i += 16
		case strings.HasPrefix(code[i:], "17"):
			if i+8 > len(code) {
				return nil, fmt.Errorf("%w: AI (17)", ErrTruncate)
			}
			yymmdd := code[i+2 : i+8]
			res.Expiry = "20" + yymmdd[:2] + "-" + yymmdd[2:4]
			i += 8
		case strings.HasPrefix(code[i:], "10"):
			start := i + 2
			end := lotEnd(code, start)
			res.Lot = code[start:end]
			i = end
		default:
			break elements
		}
	}
	if res.GTIN14 == "" || !digits(res.GTIN14) {
		return nil, ErrNoGTIN
	}
	return res, nil
}

// lotEnd finds where the variable length lot starting at start stops: at a
// group separator, at the maximum length, or where a complete (01) or (17)
// element follows.
func lotEnd(code string, start int) int {
	end := start
	for end < len(code) && end-start < maxLotLength {
		rest := code[end:]
		if rest[0] == groupSeparator {
			break
		}
		if strings.HasPrefix(rest, "01") && len(rest) >= 16 {
			break
		}
		if strings.HasPrefix(rest, "17") && len(rest) >= 8 {
			break
		}
		end++
	}
	return end
}

// ValidCheckDigit reports whether the last digit of gtin is its GS1 mod 10
// check digit.
func ValidCheckDigit(gtin string) bool {
	if len(gtin) < 2 || !digits(gtin) {
		return false
	}
	sum := 0
	body := gtin[:len(gtin)-1]
	for i := len(body) - 1; i >= 0; i-- {
		n := int(body[i] - '0')
		if (len(body)-1-i)%2 == 0 {
			n *= 3
		}
		sum += n
	}
	return byte('0'+(10-sum%10)%10) == gtin[len(gtin)-1]
}

// Candidates returns the GTIN spellings a product SKU may use for code,
// shortest first: GTIN-8, GTIN-12, GTIN-13 and GTIN-14 where the leading
// zeros allow. It returns nil when code is not a barcode.
func Candidates(code string) []string {
	res, err := Parse(code)
	if err != nil || !ValidCheckDigit(res.GTIN14) {
		return nil
	}
	var out []string
	for _, n := range []int{8, 12, 13, 14} {
		pad := res.GTIN14[:14-n]
		if strings.Trim(pad, "0") == "" {
			out = append(out, res.GTIN14[14-n:])
		}
	}
	return out
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
