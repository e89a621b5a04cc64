package cache

type KeyPrefix string

const (
	PrefixURL       KeyPrefix = "url"  // url:shortCode -> long URL
	PrefixRateLimit KeyPrefix = "rate" // rate:clientIP -> request count
)

func buildKey(prefix KeyPrefix, parts ...string) string {
	key := string(prefix)

	for _, part := range parts {
		key += ":" + part
	}

	return key
}

var CacheKeys = struct {
	URL       func(string) string
	RateLimit func(string) string
}{
	// URL is the key holding the long URL for a short code.
	URL: func(shortCode string) string {
		return buildKey(PrefixURL, shortCode)
	},
	// RateLimit is the per-client request counter key.
	RateLimit: func(clientIP string) string {
		return buildKey(PrefixRateLimit, clientIP)
	},
}
