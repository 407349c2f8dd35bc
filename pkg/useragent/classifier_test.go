package useragent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxLinux  = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	chromeAndroid = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	safariIPad    = "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	googlebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	curl          = "curl/8.4.0"
)

func TestClassifyEmpty(t *testing.T) {
	expected := Info{DeviceType: Unknown, Browser: Unknown, OS: Unknown}
	assert.Equal(t, expected, Classify(""))
	assert.Equal(t, expected, Classify("   "))
}

func TestClassifyDeviceType(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		expected string
	}{
		{"chrome on windows", chromeWindows, DeviceDesktop},
		{"firefox on linux", firefoxLinux, DeviceDesktop},
		{"safari on iphone", safariIPhone, DeviceMobile},
		{"chrome on android phone", chromeAndroid, DeviceMobile},
		{"safari on ipad", safariIPad, DeviceTablet},
		{"googlebot", googlebot, DeviceBot},
		{"curl", curl, DeviceBot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.ua).DeviceType)
		})
	}
}

func TestClassifyBrowserAndOS(t *testing.T) {
	info := Classify(chromeWindows)
	assert.True(t, strings.HasPrefix(info.Browser, "Chrome "), info.Browser)
	assert.Contains(t, info.Browser, "120")
	assert.Contains(t, info.OS, "Windows")

	info = Classify(firefoxLinux)
	assert.True(t, strings.HasPrefix(info.Browser, "Firefox "), info.Browser)
	assert.Contains(t, info.Browser, "121.0")

	info = Classify(safariIPad)
	assert.True(t, strings.HasPrefix(info.OS, "iOS "), info.OS)
	assert.Contains(t, info.OS, "17")
}

type stubParser struct {
	details Details
}

func (s stubParser) Parse(string) Details {
	return s.details
}

func TestClassifierPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		details  Details
		expected string
	}{
		{"mobile wins over everything", Details{Mobile: true, Tablet: true, Desktop: true, Bot: true}, DeviceMobile},
		{"tablet over desktop", Details{Tablet: true, Desktop: true}, DeviceTablet},
		{"desktop over bot", Details{Desktop: true, Bot: true}, DeviceDesktop},
		{"bot", Details{Bot: true}, DeviceBot},
		{"nothing matched", Details{}, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(stubParser{details: tt.details})
			assert.Equal(t, tt.expected, c.Classify("anything").DeviceType)
		})
	}
}

func TestClassifierKeepsEmptyParts(t *testing.T) {
	c := NewClassifier(stubParser{details: Details{BrowserFamily: "Other"}})
	info := c.Classify("weird-agent")

	assert.Equal(t, "Other ", info.Browser)
	assert.Equal(t, " ", info.OS)
	assert.Equal(t, Unknown, info.DeviceType)
}
