package logging

import (
	"fmt"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/budget-analyzer/service-common/internal/runtime/jsoncodec"
)

// FormatLogMessage renders "<prefix> - <details as JSON>" and appends
// "\nBody: <body>" when body is non-empty. Details that cannot be encoded are
// rendered with fmt so a log line is always produced.
func FormatLogMessage(prefix string, details map[string]any, body string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(" - ")
	encoded, err := jsoncodec.Marshal(details)
	if err != nil {
		fmt.Fprintf(&sb, "%v", details)
	} else {
		sb.Write(encoded)
	}
	if body != "" {
		sb.WriteString("\nBody: ")
		sb.WriteString(body)
	}
	return sb.String()
}

// TruncationMarker returns the suffix appended to a body cut at the byte limit.
func TruncationMarker(omitted int) string {
	return fmt.Sprintf("... [TRUNCATED - %d bytes omitted]", omitted)
}

// FormatBody renders a captured body for logging. data holds at most maxBytes
// leading bytes of a body whose full length is total. The bytes are decoded
// with the charset declared in contentType (UTF-8 when absent or unknown).
// When total exceeds maxBytes the result carries TruncationMarker. A
// character cut at the limit renders as U+FFFD so the marker still counts
// every byte not shown. An empty body renders as "".
func FormatBody(data []byte, total int, contentType string, maxBytes int) string {
	if total <= 0 {
		return ""
	}
	if maxBytes >= 0 && len(data) > maxBytes {
		data = data[:maxBytes]
	}
	body := decode(data, contentType)
	if total > len(data) {
		return strings.ToValidUTF8(body, "\uFFFD") + TruncationMarker(total-len(data))
	}
	return body
}

func decode(data []byte, contentType string) string {
	charset := charsetOf(contentType)
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(data)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
