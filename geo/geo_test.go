package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLocatorLongestPrefix(t *testing.T) {
	loc, err := NewStaticLocator(map[string]Location{
		"203.0.113.0/24":   {Country: "us", City: "Seattle"},
		"203.0.113.128/25": {Country: "ca", City: "Vancouver"},
		"198.51.100.7":     {Country: "DE", City: "Berlin"},
		"2001:db8::/32":    {Country: "JP"},
	})
	require.NoError(t, err)
	ctx := context.Background()

	got, err := loc.Lookup(ctx, "203.0.113.5")
	require.NoError(t, err)
	assert.Equal(t, Location{Country: "US", City: "Seattle"}, got)

	got, _ = loc.Lookup(ctx, "203.0.113.200")
	assert.Equal(t, "CA", got.Country)

	got, _ = loc.Lookup(ctx, "198.51.100.7")
	assert.Equal(t, "DE", got.Country)

	got, _ = loc.Lookup(ctx, "::ffff:198.51.100.7")
	assert.Equal(t, "DE", got.Country)

	got, _ = loc.Lookup(ctx, "2001:db8::1")
	assert.Equal(t, "JP", got.Country)

	got, _ = loc.Lookup(ctx, "192.0.2.1")
	assert.False(t, got.Known())

	got, err = loc.Lookup(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, got.Known())
}

func TestStaticLocatorRejectsBadKeys(t *testing.T) {
	_, err := NewStaticLocator(map[string]Location{"300.1.1.1": {Country: "X"}})
	assert.Error(t, err)
	_, err = NewStaticLocator(map[string]Location{"10.0.0.0/99": {Country: "X"}})
	assert.Error(t, err)
}

func TestUnknownLocator(t *testing.T) {
	got, err := Unknown{}.Lookup(context.Background(), "203.0.113.1")
	require.NoError(t, err)
	assert.Equal(t, Location{}, got)
}

func TestUAClassifier(t *testing.T) {
	c := UAClassifier{}
	cases := []struct {
		ua   string
		want Device
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			Device{Type: DeviceDesktop, Browser: "Chrome", OS: "Windows"}},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			Device{Type: DeviceDesktop, Browser: "Edge", OS: "Windows"}},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			Device{Type: DeviceMobile, Browser: "Safari", OS: "iOS"}},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/604.1",
			Device{Type: DeviceTablet, Browser: "Safari", OS: "iOS"}},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
			Device{Type: DeviceMobile, Browser: "Chrome", OS: "Android"}},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			Device{Type: DeviceDesktop, Browser: "Firefox", OS: "Linux"}},
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			Device{Type: DeviceBot, Browser: "unknown", OS: "unknown"}},
		{"", UnknownDevice},
		{"something-odd", UnknownDevice},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.ua), tc.ua)
	}
}
