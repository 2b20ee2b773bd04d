package geo

import "strings"

// Device types.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// Device describes the client software.
type Device struct {
	Type    string
	Browser string
	OS      string
}

// UnknownDevice is returned for empty or unrecognised agents.
var UnknownDevice = Device{Type: DeviceUnknown, Browser: "unknown", OS: "unknown"}

// Classifier maps a user agent to a Device.
type Classifier interface {
	Classify(userAgent string) Device
}

// UAClassifier recognises common browsers and operating systems by token.
type UAClassifier struct{}

type uaRule struct {
	token string
	name  string
}

// Order matters: more specific tokens first.
var (
	browserRules = []uaRule{
		{"edg/", "Edge"},
		{"opr/", "Opera"},
		{"samsungbrowser", "Samsung Internet"},
		{"firefox/", "Firefox"},
		{"fxios/", "Firefox"},
		{"crios/", "Chrome"},
		{"chrome/", "Chrome"},
		{"safari/", "Safari"},
		{"curl/", "curl"},
	}
	osRules = []uaRule{
		{"windows nt", "Windows"},
		{"iphone", "iOS"},
		{"ipad", "iOS"},
		{"android", "Android"},
		{"cros", "ChromeOS"},
		{"mac os x", "macOS"},
		{"linux", "Linux"},
	}
	botTokens = []string{"bot", "crawler", "spider", "scraper"}
)

func (UAClassifier) Classify(userAgent string) Device {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return UnknownDevice
	}

	d := Device{Type: DeviceDesktop, Browser: "unknown", OS: "unknown"}
	for _, r := range browserRules {
		if strings.Contains(ua, r.token) {
			d.Browser = r.name
			break
		}
	}
	for _, r := range osRules {
		if strings.Contains(ua, r.token) {
			d.OS = r.name
			break
		}
	}

	switch {
	case containsAny(ua, botTokens):
		d.Type = DeviceBot
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		d.Type = DeviceTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone"):
		d.Type = DeviceMobile
	case d.OS == "unknown" && d.Browser == "unknown":
		d.Type = DeviceUnknown
	}
	return d
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
