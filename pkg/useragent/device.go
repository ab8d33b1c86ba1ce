package useragent

import (
	"strings"
)

type marker struct {
	token string
	name  string
	skip  string
}

// Order matters: Edge and Chrome both mention Safari, Edge mentions Chrome.
var browsers = []marker{
	{token: "Edg/", name: "Edge"},
	{token: "Firefox/", name: "Firefox"},
	{token: "Chrome/", name: "Chrome"},
	{token: "Safari/", name: "Safari", skip: "Chrome"},
}

var systems = []marker{
	{token: "Android", name: "Android"},
	{token: "iPhone", name: "iOS"},
	{token: "iPad", name: "iOS"},
	{token: "Windows", name: "Windows"},
	{token: "Mac OS X", name: "macOS"},
	{token: "Linux", name: "Linux"},
}

// Describe turns a User-Agent header into a short label such as
// "Chrome 120 on Linux". Game clients that are not browsers get their
// product token instead.
func Describe(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return "Unknown Device"
	}

	browser, version := "", ""
	for _, m := range browsers {
		idx := strings.Index(ua, m.token)
		if idx == -1 || (m.skip != "" && strings.Contains(ua, m.skip)) {
			continue
		}
		browser = m.name
		version = majorVersion(ua[idx+len(m.token):])
		break
	}
	if browser == "" {
		// e.g. "connect4-cli/1.2" -> "connect4-cli"
		product, _, _ := strings.Cut(ua, " ")
		name, _, _ := strings.Cut(product, "/")
		return name
	}

	os := "Unknown OS"
	for _, m := range systems {
		if strings.Contains(ua, m.token) {
			os = m.name
			break
		}
	}

	if version != "" {
		return browser + " " + version + " on " + os
	}
	return browser + " on " + os
}

func majorVersion(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
