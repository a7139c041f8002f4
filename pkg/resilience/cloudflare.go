package resilience

import "strings"

// cloudflareMarkers is the vocabulary found in challenge interstitials.
var cloudflareMarkers = []string{
	"cf-ray",
	"cf-mitigated",
	"__cf_chl_",
	"checking your browser",
	"just a moment...",
	"cloudflare",
	"enable javascript and cookies to continue",
	"challenge-platform",
}

// cloudflareStatuses are the status codes commonly returned by challenges.
var cloudflareStatuses = map[int]bool{
	403: true,
	503: true,
	520: true,
	521: true,
	522: true,
	523: true,
	524: true,
	525: true,
	526: true,
}

// IsCloudflareStatus reports whether the status code is one Cloudflare uses
// for bot-challenge responses.
func IsCloudflareStatus(statusCode int) bool {
	return cloudflareStatuses[statusCode]
}

// IsCloudflareChallenge reports whether the body or header keys carry any of
// the known challenge markers. Matching is case-insensitive.
func IsCloudflareChallenge(body string, headers map[string][]string) bool {
	lower := strings.ToLower(body)
	for _, marker := range cloudflareMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	for key := range headers {
		k := strings.ToLower(key)
		if strings.Contains(k, "cf-") || strings.Contains(k, "cloudflare") {
			return true
		}
	}

	return false
}

// CloudflareMarkersIn returns the markers present in body, for logging.
func CloudflareMarkersIn(body string) []string {
	lower := strings.ToLower(body)
	var found []string
	for _, marker := range cloudflareMarkers {
		if strings.Contains(lower, marker) {
			found = append(found, marker)
		}
	}
	return found
}
