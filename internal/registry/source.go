package registry

import (
	"net/url"
	"strings"

	"github.com/e5r/devcom/internal/deverr"
)

const (
	githubHost     = "github.com"
	rawContentBase = "https://raw.githubusercontent.com"
	defaultBranch  = "main"
)

// SourceOptions override what ParseSource derives from the URL.
type SourceOptions struct {
	Name   string
	Branch string
	Path   string
}

// ParseSource turns a user supplied URL into a scope name and entry.
//
// https://github.com/<owner>/<repo>[/tree/<branch>[/<path>]] becomes a
// github entry; any other http(s) URL becomes a url entry.
func ParseSource(raw string, opts SourceOptions) (string, Entry, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", Entry{}, deverr.InvalidURI("%q is not an http(s) URL", raw)
	}

	var (
		scope string
		entry Entry
	)
	if strings.EqualFold(u.Hostname(), githubHost) || strings.EqualFold(u.Hostname(), "www."+githubHost) {
		scope, entry, err = parseGitHub(u)
		if err != nil {
			return "", Entry{}, err
		}
	} else {
		scope = hostLabel(u.Hostname())
		entry = Entry{
			Type: KindURL,
			URL:  u.Scheme + "://" + u.Host + strings.TrimRight(u.EscapedPath(), "/"),
		}
	}

	if opts.Name != "" {
		scope = opts.Name
	}
	if opts.Branch != "" {
		if entry.Type != KindGitHub {
			return "", Entry{}, deverr.InvalidURI("--branch only applies to GitHub sources")
		}
		entry.Branch = opts.Branch
	}
	if opts.Path != "" {
		entry.Path = strings.Trim(opts.Path, "/")
	}
	return scope, entry, nil
}

func parseGitHub(u *url.URL) (string, Entry, error) {
	segs := splitPath(u.Path)
	if len(segs) < 2 {
		return "", Entry{}, deverr.InvalidURI("GitHub URL %q must name an owner and a repository", u.String())
	}

	entry := Entry{
		Type:       KindGitHub,
		Owner:      segs[0],
		Repository: strings.TrimSuffix(segs[1], ".git"),
		Branch:     defaultBranch,
	}
	rest := segs[2:]
	if len(rest) > 0 {
		if rest[0] != "tree" || len(rest) < 2 {
			return "", Entry{}, deverr.InvalidURI("unsupported GitHub URL %q", u.String())
		}
		entry.Branch = rest[1]
		entry.Path = strings.Join(rest[2:], "/")
	}
	return entry.Repository, entry, nil
}

func hostLabel(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) > 1 && labels[0] == "www" {
		labels = labels[1:]
	}
	return labels[0]
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// BaseURL returns the URL every resource path of entry is appended to.
// It always ends with exactly one slash and contains no empty segments.
func BaseURL(e Entry) (string, error) {
	switch e.Type {
	case KindGitHub:
		if e.Owner == "" || e.Repository == "" || e.Branch == "" {
			return "", deverr.Configuration("github entry needs owner, repository and branch")
		}
		return joinURL(rawContentBase, e.Owner, e.Repository, e.Branch, e.Path), nil
	case KindURL:
		u, err := url.Parse(e.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", deverr.Configuration("url entry has invalid url %q", e.URL)
		}
		return joinURL(u.Scheme+"://"+u.Host, u.EscapedPath(), e.Path), nil
	default:
		return "", deverr.Configuration("unknown registry entry type %q", e.Type)
	}
}

func joinURL(origin string, parts ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(origin, "/"))
	for _, p := range parts {
		for _, seg := range splitPath(p) {
			b.WriteByte('/')
			b.WriteString(seg)
		}
	}
	b.WriteByte('/')
	return b.String()
}
