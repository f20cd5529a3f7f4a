package ledger

import (
	"fmt"
	"strings"
)

// NormalizeCode turns user or spreadsheet input into a Taiwan instrument
// code: digits only, left-padded to four ("50" -> "0050", "2330.0" -> "2330").
func NormalizeCode(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if code == "" {
		return "", fmt.Errorf("invalid instrument code %q", raw)
	}
	if len(code) < 4 {
		code = strings.Repeat("0", 4-len(code)) + code
	}
	return code, nil
}
