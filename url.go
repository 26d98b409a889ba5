// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package covenant

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

var (
	// ErrHostNotAllowed is returned when a URL points outside the crawl's
	// host set.
	ErrHostNotAllowed = errors.New("host not allowed")
	// ErrInvalidURL is returned when a URL cannot be parsed or resolved.
	ErrInvalidURL = errors.New("invalid URL")
)

// AllowedHosts is the set of hostnames a crawl may visit: the start URL's
// hostname plus its www-prefixed or www-stripped twin.
type AllowedHosts struct {
	primary string
	hosts   []string
}

// NewAllowedHosts builds the host set for startURL.
func NewAllowedHosts(startURL string) (AllowedHosts, error) {
	u, err := ParseURL(startURL, "")
	if err != nil {
		return AllowedHosts{}, err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return AllowedHosts{}, fmt.Errorf("%w: %q has no host", ErrInvalidURL, startURL)
	}
	twin := "www." + host
	if strings.HasPrefix(host, "www.") {
		twin = strings.TrimPrefix(host, "www.")
	}
	return AllowedHosts{primary: host, hosts: []string{host, twin}}, nil
}

// Primary returns the start URL's hostname.
func (a AllowedHosts) Primary() string {
	return a.primary
}

// Hosts returns every allowed hostname, primary first.
func (a AllowedHosts) Hosts() []string {
	return append([]string(nil), a.hosts...)
}

// Allows reports whether host (with or without a port) is in the set.
func (a AllowedHosts) Allows(host string) bool {
	host = strings.ToLower(stripPort(host))
	for _, h := range a.hosts {
		if h == host {
			return true
		}
	}
	return false
}

// Variants returns the allowed hostnames other than host, in stable order.
// Used for DNS fallback.
func (a AllowedHosts) Variants(host string) []string {
	host = strings.ToLower(stripPort(host))
	var out []string
	for _, h := range a.hosts {
		if h != host {
			out = append(out, h)
		}
	}
	return out
}

// NormalizeURL resolves raw against base and returns the identity key used
// to deduplicate pages across the pipeline. The hash is cleared, query keys
// are sorted (values keep their relative order) and a trailing slash is
// stripped from non-root paths after collapsing repeated slashes. Returns
// false for non-http(s) schemes, foreign hosts and unparsable input.
func (a AllowedHosts) NormalizeURL(raw, base string) (string, bool) {
	u, err := ParseURL(raw, base)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !a.Allows(u.Hostname()) {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.RawQuery)
	}
	u.ForceQuery = false

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		p := collapseSlashes(u.Path)
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			p = "/"
		}
		u.Path = p
		u.RawPath = ""
	}
	return u.String(), true
}

type queryPair struct {
	key, value string
}

// sortQuery sorts the pairs of a query string by key, keeping every pair
// and the relative order of equal keys. Separators other than '&' are part
// of the value, so "a=1;b=2" is one pair.
func sortQuery(rawQuery string) string {
	var pairs []queryPair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		pairs = append(pairs, queryPair{key: unescapeQuery(key), value: unescapeQuery(value)})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// unescapeQuery decodes a form-encoded component, leaving malformed escapes
// as they are.
func unescapeQuery(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return strings.ReplaceAll(s, "+", " ")
}

// ParseURL parses raw with the WHATWG URL parser, resolving it against base
// when base is non-empty, and converts the result to a net/url value.
func ParseURL(raw, base string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	var (
		parsed *whatwgUrl.Url
		err    error
	)
	if base != "" {
		parsed, err = urlParser.ParseRef(base, raw)
	} else {
		parsed, err = urlParser.Parse(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u, err := url.Parse(parsed.Href(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return u, nil
}

// ToAbsoluteURL resolves raw against base and drops the fragment.
func ToAbsoluteURL(raw, base string) (string, bool) {
	u, err := ParseURL(raw, base)
	if err != nil {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// ResolveURL resolves raw against base keeping any fragment.
func ResolveURL(raw, base string) (string, bool) {
	u, err := ParseURL(raw, base)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// HostOf returns the lower-cased hostname of rawURL, or "" when unparsable.
func HostOf(rawURL string) string {
	u, err := ParseURL(rawURL, "")
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// StripWWW removes a leading "www." from host.
func StripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func collapseSlashes(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end >= 0 {
			return host[1:end]
		}
		return host
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && strings.Count(host, ":") == 1 {
		return host[:i]
	}
	return host
}
