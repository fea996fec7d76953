package upstream

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PageLinks holds the page numbers parsed from the upstream Link header.
// Zero means the relation was absent.
type PageLinks struct {
	Next  int `json:"next,omitempty"`
	Prev  int `json:"prev,omitempty"`
	First int `json:"first,omitempty"`
	Last  int `json:"last,omitempty"`
}

// RateLimit is the snapshot of the upstream quota taken from the
// X-RateLimit-* response headers.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Used      int       `json:"used"`
	Reset     time.Time `json:"reset"`
}

// Meta carries the response metadata surfaced alongside every upstream
// call: pagination links and the rate-limit snapshot.
type Meta struct {
	Page      PageLinks
	RateLimit RateLimit
}

func parseMeta(h http.Header) *Meta {
	m := &Meta{
		Page: parseLinkHeader(h.Get("Link")),
		RateLimit: RateLimit{
			Limit:     atoiOrZero(h.Get("X-RateLimit-Limit")),
			Remaining: atoiOrZero(h.Get("X-RateLimit-Remaining")),
			Used:      atoiOrZero(h.Get("X-RateLimit-Used")),
		},
	}
	if reset := atoiOrZero(h.Get("X-RateLimit-Reset")); reset > 0 {
		m.RateLimit.Reset = time.Unix(int64(reset), 0).UTC()
	}
	return m
}

// parseLinkHeader extracts page numbers from an RFC 8288 Link header of the
// form `<https://api.github.com/...?page=2>; rel="next", <...>; rel="last"`.
func parseLinkHeader(link string) PageLinks {
	var pages PageLinks
	if link == "" {
		return pages
	}

	for _, part := range strings.Split(link, ",") {
		segments := strings.Split(strings.TrimSpace(part), ";")
		if len(segments) < 2 {
			continue
		}

		target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		u, err := url.Parse(target)
		if err != nil {
			continue
		}
		page := atoiOrZero(u.Query().Get("page"))
		if page == 0 {
			continue
		}

		for _, seg := range segments[1:] {
			seg = strings.TrimSpace(seg)
			switch seg {
			case `rel="next"`:
				pages.Next = page
			case `rel="prev"`:
				pages.Prev = page
			case `rel="first"`:
				pages.First = page
			case `rel="last"`:
				pages.Last = page
			}
		}
	}
	return pages
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
