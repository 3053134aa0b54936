// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ErrNoForm    = errors.New("relay: launch page has no form")
	ErrNoFrame   = errors.New("relay: page has no iframe")
	ErrNoSection = errors.New("relay: frame url has no section id")
)

// Field is one name/value pair of the relay form, in document order.
type Field struct {
	Name  string
	Value string
}

// RelayForm is the login relay form scraped from the portal's tool launch page.
type RelayForm struct {
	Action *url.URL
	Fields []Field
}

// Values returns the fields as a POST body. Repeated names are kept in order.
func (f RelayForm) Values() url.Values {
	v := make(url.Values, len(f.Fields))
	for _, field := range f.Fields {
		v.Add(field.Name, field.Value)
	}
	return v
}

// Origin is scheme://host of the action URL. All lecture-capture calls for
// the course are made against it.
func (f RelayForm) Origin() *url.URL {
	return &url.URL{Scheme: f.Action.Scheme, Host: f.Action.Host}
}

// Section identifies the lecture-capture section of one course.
type Section struct {
	ID   string
	Base *url.URL
	// Frame is the resolved section frame URL that finalizes the session.
	Frame *url.URL
}

// ParseLaunchForm scrapes the first form of the launch page. The action is
// resolved against page, inputs without a name are skipped.
func ParseLaunchForm(r io.Reader, page *url.URL) (RelayForm, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return RelayForm{}, fmt.Errorf("parse launch page: %w", err)
	}
	form := findFirst(doc, atom.Form)
	if form == nil {
		return RelayForm{}, ErrNoForm
	}

	action := strings.TrimSpace(attr(form, "action"))
	if action == "" {
		return RelayForm{}, fmt.Errorf("%w: form has no action", ErrNoForm)
	}
	target, err := resolve(page, action)
	if err != nil {
		return RelayForm{}, fmt.Errorf("form action %q: %w", action, err)
	}
	if target.Host == "" {
		return RelayForm{}, fmt.Errorf("%w: action %q has no host", ErrNoForm, action)
	}

	out := RelayForm{Action: target}
	walk(form, func(n *html.Node) {
		if n.DataAtom != atom.Input {
			return
		}
		name := attr(n, "name")
		if name == "" {
			return
		}
		out.Fields = append(out.Fields, Field{Name: name, Value: attr(n, "value")})
	})
	return out, nil
}

// ParseFrameSource returns the raw src of the first iframe in the document.
func ParseFrameSource(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	frame := findFirst(doc, atom.Iframe)
	if frame == nil {
		return "", ErrNoFrame
	}
	src := strings.TrimSpace(attr(frame, "src"))
	if src == "" {
		return "", fmt.Errorf("%w: iframe has no src", ErrNoFrame)
	}
	return src, nil
}

// SectionFromFrame resolves src against base; the last path segment of the
// result is the section id.
func SectionFromFrame(src string, base *url.URL) (Section, error) {
	frame, err := resolve(base, src)
	if err != nil {
		return Section{}, fmt.Errorf("section frame %q: %w", src, err)
	}
	id := path.Base(frame.Path)
	if id == "" || id == "/" || id == "." {
		return Section{}, fmt.Errorf("%w: %s", ErrNoSection, frame.Redacted())
	}
	return Section{ID: id, Base: base, Frame: frame}, nil
}

// SectionDataURL is the lecture-capture listing of all presentations of a section.
func (s Section) SectionDataURL(pageSize int) string {
	u := *s.Base
	u.Path = "/ess/client/api/sections/" + url.PathEscape(s.ID) + "/section-data.json"
	u.RawQuery = fmt.Sprintf("&pageSize=%d", pageSize)
	return u.String()
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return r, nil
	}
	return base.ResolveReference(r), nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
