package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/e5r/devcom/internal/branding"
	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/logging"
)

// DefaultTimeout bounds a single request, body included.
const DefaultTimeout = 10 * time.Minute

// Fetcher retrieves remote content. Client is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	FetchFile(ctx context.Context, url, dest string) error
}

// Client performs blocking HTTP GETs with a bounded timeout.
type Client struct {
	httpClient *http.Client
	progress   io.Writer
	logger     *log.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-request timeout. A client passed through
// WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			hc := *cl.httpClient
			hc.Timeout = d
			cl.httpClient = &hc
		}
	}
}

// WithProgress enables a percentage indicator on w for FetchFile.
func WithProgress(w io.Writer) Option {
	return func(cl *Client) {
		cl.progress = w
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  branding.CLIName() + "-cli",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, deverr.Network("creating request for %s", url).Wrap(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("fetching", "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, deverr.Network("fetching %s", url).Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, deverr.Network("fetching %s: unexpected status %s", url, resp.Status)
	}
	return resp, nil
}

// Fetch returns the body of url.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, deverr.Network("reading %s", url).Wrap(err)
	}
	return body, nil
}

// FetchFile streams url into dest. The body is written to a temporary
// file in dest's directory and renamed into place, so dest is either
// absent or complete.
func (c *Client) FetchFile(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return deverr.FileSystem("preparing download destination").Wrap(err)
	}

	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return deverr.FileSystem("creating temp file").Wrap(err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	var dst io.Writer = tmpFile
	if c.progress != nil && resp.ContentLength > 0 {
		dst = &progressWriter{w: tmpFile, out: c.progress, total: resp.ContentLength, name: filepath.Base(dest), last: -1}
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		tmpFile.Close()
		return deverr.Network("reading %s", url).Wrap(err)
	}
	if pw, ok := dst.(*progressWriter); ok {
		pw.done()
	}
	if err := tmpFile.Close(); err != nil {
		return deverr.FileSystem("closing temp file").Wrap(err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return deverr.FileSystem("finalizing download %s", dest).Wrap(err)
	}
	return nil
}

type progressWriter struct {
	w       io.Writer
	out     io.Writer
	name    string
	total   int64
	written int64
	last    int
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	percent := int(p.written * 100 / p.total)
	if percent != p.last {
		fmt.Fprintf(p.out, "\rDownloading %s... %d%%", p.name, percent)
		p.last = percent
	}
	return n, err
}

func (p *progressWriter) done() {
	fmt.Fprintln(p.out)
}
