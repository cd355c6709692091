// Package host abstracts the page a checkout runs in: script injection,
// globals exposed by provider SDKs, container elements and navigation.
package host

import (
	"context"
	"net/url"
	"strings"
)

// ScriptTag describes a script element to inject into the page.
type ScriptTag struct {
	ID     string
	Src    string
	Attrs  map[string]string
	Global string
}

// Node is an element appended to a container, typically a provider button.
type Node struct {
	Kind    string                    `json:"kind"`
	Attrs   map[string]string         `json:"attrs,omitempty"`
	OnClick func(ctx context.Context) `json:"-"`
}

// Container is a page element that provider UI is rendered into.
type Container interface {
	ID() string
	AddClass(class string)
	Append(node *Node)
}

// Page is the environment strategies render into and navigate.
type Page interface {
	// Location returns the current page URL.
	Location() *url.URL
	// Replace navigates away, replacing the current history entry.
	Replace(rawURL string) error
	// ReplaceState rewrites the current URL without navigating.
	ReplaceState(rawURL string)
	InjectScript(ctx context.Context, tag *ScriptTag) error
	// Global resolves a global installed by a loaded script.
	Global(name string) (any, bool)
	Element(id string) (Container, bool)
	// Input returns the values a mounted element collected.
	Input(selector string) map[string]string
}

// SelectorID strips a leading '#' from a CSS id selector.
func SelectorID(selector string) string {
	return strings.TrimPrefix(selector, "#")
}

// BaseURL returns origin + path of u, without query or fragment.
func BaseURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// StripQuery returns u without its query string and fragment.
func StripQuery(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	clean.Fragment = ""
	return clean.String()
}
