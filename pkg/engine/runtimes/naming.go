package runtimes

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	camelWord  = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	camelUpper = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// snakeCase turns an action name into a boto3 method name:
// GetSMSAttributes → get_sms_attributes.
func snakeCase(s string) string {
	s = camelWord.ReplaceAllString(s, "${1}_${2}")
	s = camelUpper.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
