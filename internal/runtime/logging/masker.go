package logging

import (
	"net/http"
	"sort"
	"strings"
)

// MaskedValue replaces the value of every sensitive header in log output. It
// never reveals length or any part of the original value.
const MaskedValue = "***MASKED***"

// DefaultSensitiveHeaders lists the header names masked when configuration
// does not override the list.
var DefaultSensitiveHeaders = []string{
	"Authorization",
	"Cookie",
	"Set-Cookie",
	"X-API-Key",
	"X-Auth-Token",
	"Proxy-Authorization",
	"WWW-Authenticate",
}

// IsSensitive reports whether name matches an entry in sensitive, ignoring case.
// Matching is exact: "X-API-Key-Id" is not sensitive because "X-API-Key" is.
func IsSensitive(name string, sensitive []string) bool {
	for _, candidate := range sensitive {
		if strings.EqualFold(name, candidate) {
			return true
		}
	}
	return false
}

// Mask returns the fixed mask regardless of value.
func Mask(string) string {
	return MaskedValue
}

// MaskHeaders flattens h into a loggable map, joining repeated values with ", "
// and replacing sensitive values with MaskedValue.
func MaskHeaders(h http.Header, sensitive []string) map[string]string {
	out := make(map[string]string, len(h))
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := strings.Join(h[name], ", ")
		if IsSensitive(name, sensitive) {
			value = Mask(value)
		}
		out[name] = value
	}
	return out
}
