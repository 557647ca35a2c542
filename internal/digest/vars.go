package digest

import (
	"strings"
	"time"
)

// ExpandVars performs simple placeholder substitutions for config-provided
// text fields (title, preface).
//
// Supported variables:
// - {.CurrentDate} => formatted as YYYY-MM-DD (UTC)
// - {.Username}    => the digest owner's username
func ExpandVars(s string, now time.Time, username string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	r := strings.NewReplacer(
		"{.CurrentDate}", now.UTC().Format("2006-01-02"),
		"{.Username}", username,
	)
	return r.Replace(s)
}
