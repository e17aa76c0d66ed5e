package pep440

import (
	"regexp"
	"strings"
)

var nameSepRegexp = regexp.MustCompile(`[-_.]+`)

// NormalizeName applies PEP 503 project-name normalization: lowercase,
// then collapse runs of "-", "_", and "." into a single "-".
func NormalizeName(name string) string {
	return nameSepRegexp.ReplaceAllString(strings.ToLower(name), "-")
}
