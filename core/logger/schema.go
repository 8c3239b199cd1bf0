package logger

import "strings"

var knownStatus = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"rate_limited": {},
	"cancelled":    {},
}

// normalizeStatus lower-cases s and folds common synonyms onto the known set.
func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "error", "failed":
		return "fail"
	case "canceled":
		return "cancelled"
	}
	return s
}

// IsKnownStatus reports whether s is one of the documented status values.
func IsKnownStatus(s string) bool {
	_, ok := knownStatus[normalizeStatus(s)]
	return ok
}

// defaultKeyOrder puts identity and outcome first, then request metadata,
// then shop fields, then error details.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"from",
	"to",
	"product",
	"qty",
	"order_id",
	"total",
	"stars",
	"delta",
	"count",
	"delivered",
	"failed",
	"type",
	"event_id",
	"payload",
	"username",
	"lang",
	"mode",
	"listen",
	"public_url",
	"method",
	"path",
	"http_code",
	"driver",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"attempts",
}
