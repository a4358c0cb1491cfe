package resource

import (
	"regexp"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/plugin"
)

// Scheme is a resource URI scheme.
type Scheme string

// Schemes.
const (
	SchemeCommand Scheme = "cmd"
	SchemeLibrary Scheme = "lib"
	SchemeDoc     Scheme = "doc"
)

var uriPattern = regexp.MustCompile(`^(cmd|lib|doc)://([a-z0-9\-_/]+)$`)

// URI is a parsed resource identifier.
type URI struct {
	Scheme Scheme
	Name   string
}

// Parse decomposes raw into scheme and name.
func Parse(raw string) (URI, error) {
	m := uriPattern.FindStringSubmatch(raw)
	if m == nil {
		return URI{}, deverr.InvalidURI("invalid resource URI %q", raw)
	}
	return URI{Scheme: Scheme(m[1]), Name: m[2]}, nil
}

// MustParse is Parse for constant URIs.
func MustParse(raw string) URI {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the URI in scheme://name form.
func (u URI) String() string { return string(u.Scheme) + "://" + u.Name }

// Key is the root-relative path of the resource, e.g. "lib/cmd/registry.js".
// It doubles as the cache key and the lock manifest entry.
func (u URI) Key() string {
	switch u.Scheme {
	case SchemeCommand:
		return "lib/cmd/" + u.Name + ".js"
	case SchemeLibrary:
		return "lib/" + u.Name + ".js"
	default:
		return "doc/" + u.Name + ".txt"
	}
}

// IsModule reports whether the resource is executable code rather than text.
func (u URI) IsModule() bool {
	return u.Scheme == SchemeCommand || u.Scheme == SchemeLibrary
}

// Label names the resource type for messages.
func (u URI) Label() string {
	switch u.Scheme {
	case SchemeCommand:
		return "DevCom"
	case SchemeLibrary:
		return "Library"
	default:
		return "Documentation"
	}
}

// PluginKind is the plugin table kind of a module URI.
func (u URI) PluginKind() plugin.Kind {
	if u.Scheme == SchemeCommand {
		return plugin.KindCommand
	}
	return plugin.KindLibrary
}
