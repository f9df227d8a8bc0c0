package intercept

import (
	"net/url"
	"strings"
)

// fragmentParams splits "a=1&b=2#c=3" into a map. Both '&' and '#' separate pairs,
// values are taken verbatim.
func fragmentParams(fragment string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.FieldsFunc(fragment, func(r rune) bool { return r == '&' || r == '#' }) {
		k, v, _ := strings.Cut(part, "=")
		if k != "" {
			params[k] = v
		}
	}
	return params
}

// stripped returns a copy of u without the fragment and the named query parameters.
func stripped(u *url.URL, query ...string) *url.URL {
	out := *u
	out.Fragment = ""
	out.RawFragment = ""
	if len(query) == 0 || out.RawQuery == "" {
		return &out
	}

	q := out.Query()
	changed := false
	for _, name := range query {
		if q.Has(name) {
			q.Del(name)
			changed = true
		}
	}
	if changed {
		out.RawQuery = q.Encode()
	}
	return &out
}

// lastSegment returns the last path segment of u.
func lastSegment(u *url.URL) string {
	p := u.Path
	return p[strings.LastIndexByte(p, '/')+1:]
}
