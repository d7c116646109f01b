package domain

import (
	"net/url"
	"regexp"
	"strings"
)

var driveFilePathRe = regexp.MustCompile(`^/file/d/([A-Za-z0-9_-]+)`)

// Query parameters that never change which image a URL points at.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"usp":          {},
	"fbclid":       {},
	"gclid":        {},
	"ref":          {},
}

// Parameters that carry the real target of a proxy or redirect link.
var proxyTargetParams = []string{"url", "src", "target"}

// CanonicalImageKey maps any accepted form of an image URL (share link,
// direct link, proxied link) to the single string used for dedup and merge.
// Unparseable input is returned trimmed so it still works as a key.
func CanonicalImageKey(raw string) string {
	return canonicalize(strings.TrimSpace(raw), 0)
}

func canonicalize(raw string, depth int) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	query := u.Query()
	if depth < 3 {
		for _, param := range proxyTargetParams {
			inner := strings.TrimSpace(query.Get(param))
			if strings.HasPrefix(inner, "http://") || strings.HasPrefix(inner, "https://") {
				return canonicalize(inner, depth+1)
			}
		}
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":443")
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimPrefix(host, "www.")

	switch {
	case host == "drive.google.com" || host == "docs.google.com":
		if id := driveFileID(u.Path, query); id != "" {
			return "https://drive.google.com/uc?id=" + id
		}
	case host == "dropbox.com" || strings.HasSuffix(host, ".dropbox.com") || host == "dropboxusercontent.com" || strings.HasSuffix(host, ".dropboxusercontent.com"):
		query.Del("dl")
		query.Del("raw")
		host = "dropbox.com"
	}

	for param := range query {
		if _, drop := trackingParams[strings.ToLower(param)]; drop {
			query.Del(param)
		}
	}

	scheme := strings.ToLower(u.Scheme)
	if hostname := strings.ToLower(u.Hostname()); scheme == "http" && hostname != "localhost" && !strings.HasPrefix(hostname, "127.") {
		scheme = "https"
	}

	out := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     strings.TrimRight(u.Path, "/"),
		RawPath:  strings.TrimRight(u.RawPath, "/"),
		RawQuery: query.Encode(),
	}
	return out.String()
}

func driveFileID(path string, query url.Values) string {
	if m := driveFilePathRe.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return strings.TrimSpace(query.Get("id"))
}

// SameImage reports whether two raw URLs canonicalize to the same key.
func SameImage(a, b string) bool {
	ka := CanonicalImageKey(a)
	return ka != "" && ka == CanonicalImageKey(b)
}
