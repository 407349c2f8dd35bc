// Package useragent classifies raw User-Agent header values into device
// type, browser and operating system.
package useragent

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
	Unknown       = "unknown"
)

// Info is the classification stored on every click event.
type Info struct {
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

// Details is what a Parser extracts from a raw header. Several device flags
// may be set at once; the Classifier applies precedence.
type Details struct {
	Mobile  bool
	Tablet  bool
	Desktop bool
	Bot     bool

	BrowserFamily  string
	BrowserVersion string
	OSFamily       string
	OSVersion      string
}

// Parser is a best-effort signature matcher.
type Parser interface {
	Parse(raw string) Details
}

type Classifier struct {
	parser Parser
}

// NewClassifier returns a Classifier backed by p, or by the default
// signature parser when p is nil.
func NewClassifier(p Parser) *Classifier {
	if p == nil {
		p = SignatureParser{}
	}
	return &Classifier{parser: p}
}

var defaultClassifier = NewClassifier(nil)

// Classify uses the default signature parser.
func Classify(raw string) Info {
	return defaultClassifier.Classify(raw)
}

// Classify never returns empty fields: a missing header yields "unknown"
// everywhere, otherwise browser and OS are "<family> <version>".
func (c *Classifier) Classify(raw string) Info {
	if strings.TrimSpace(raw) == "" {
		return Info{DeviceType: Unknown, Browser: Unknown, OS: Unknown}
	}

	d := c.parser.Parse(raw)
	return Info{
		DeviceType: deviceType(d),
		Browser:    fmt.Sprintf("%s %s", d.BrowserFamily, d.BrowserVersion),
		OS:         fmt.Sprintf("%s %s", d.OSFamily, d.OSVersion),
	}
}

// deviceType applies mobile > tablet > desktop > bot > unknown.
func deviceType(d Details) string {
	switch {
	case d.Mobile:
		return DeviceMobile
	case d.Tablet:
		return DeviceTablet
	case d.Desktop:
		return DeviceDesktop
	case d.Bot:
		return DeviceBot
	default:
		return Unknown
	}
}

var (
	mobileHints = []string{"iphone", "ipod", "windows phone", "mobile"}
	tabletHints = []string{"ipad", "tablet", "kindle", "silk/", "playbook"}

	desktopHints = []string{"windows nt", "macintosh", "x11", "cros", "linux"}

	appleMobileHints = []string{"ipad", "iphone", "ipod"}

	// mssola only flags crawlers that announce themselves; plain HTTP
	// clients are treated as bots too.
	botHints = []string{"bot", "crawler", "spider", "scraper", "curl", "wget", "python-requests", "go-http-client", "java/", "node-fetch", "axios"}
)

// SignatureParser is the default Parser, built on github.com/mssola/useragent.
type SignatureParser struct{}

func (SignatureParser) Parse(raw string) Details {
	ua := useragent.New(raw)
	lower := strings.ToLower(raw)

	tablet := containsAny(lower, tabletHints) ||
		(strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"))
	bot := ua.Bot() || containsAny(lower, botHints)
	mobile := (ua.Mobile() || containsAny(lower, mobileHints)) && !tablet

	browser, version := ua.Browser()
	osInfo := ua.OSInfo()
	// iPadOS reports "CPU OS <version>", which mssola names "OS".
	if osInfo.Name == "OS" && containsAny(lower, appleMobileHints) {
		osInfo.Name = "iOS"
	}

	return Details{
		Mobile:         mobile,
		Tablet:         tablet,
		Desktop:        !bot && !mobile && !tablet && containsAny(lower, desktopHints),
		Bot:            bot,
		BrowserFamily:  browser,
		BrowserVersion: version,
		OSFamily:       osInfo.Name,
		OSVersion:      osInfo.Version,
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
