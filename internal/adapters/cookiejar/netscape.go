// Package cookiejar parses Netscape cookie-jar exports into a Cookie
// header suitable for replaying a browser session.
package cookiejar

import "strings"

// Cookie is one parsed jar line.
type Cookie struct {
	Domain  string
	Path    string
	Secure  bool
	Expires int64
	Name    string
	Value   string
}

// Parse reads Netscape cookie-jar text: seven tab-delimited fields per
// line. Comment lines and malformed lines are skipped; a UTF-8 BOM on the
// domain field is stripped.
func Parse(text string) []Cookie {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	cookies := make([]Cookie, 0, len(lines))

	for _, line := range lines {
		fields := strings.Split(line, "\t")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		if len(fields) != 7 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		domain := strings.TrimPrefix(fields[0], "\uFEFF")
		domain = stripNonPrintable(domain)

		cookie := Cookie{
			Domain: domain,
			Path:   fields[2],
			Secure: strings.EqualFold(fields[3], "true"),
			Name:   fields[5],
			Value:  fields[6],
		}
		if strings.HasPrefix(cookie.Name, "__Host-") {
			cookie.Secure = true
		}
		if fields[4] != "0" {
			cookie.Expires = parseExpiry(fields[4])
		}

		cookies = append(cookies, cookie)
	}

	return cookies
}

// Header joins cookies into a single Cookie request-header value.
func Header(cookies []Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		pairs = append(pairs, cookie.Name+"="+cookie.Value)
	}
	return strings.Join(pairs, "; ")
}

func parseExpiry(field string) int64 {
	var expiry int64
	for _, r := range field {
		if r < '0' || r > '9' {
			return 0
		}
		expiry = expiry*10 + int64(r-'0')
	}
	// The jar stores seconds; callers work in milliseconds.
	return expiry * 1000
}

func stripNonPrintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
		}
	}
	return b.String()
}
