// Package refpage loads reference pages, over http or from a saved copy on disk.
package refpage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"permgen/lib/restyutil"
	"permgen/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("permgen.lib.refpage")

const (
	ReferenceURL = "https://developer.android.com/reference/android/Manifest.permission.html"
	// the page the dangerous list lived on before the reference grew detail blocks
	LegacyGuideURL = "https://developer.android.com/guide/topics/security/permissions.html"

	DefaultTimeout   = time.Second * 30
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

var ErrUnexpectedStatus = errors.New("unexpected http status")

// Source loads and parses one page.
type Source interface {
	Document(ctx context.Context, location string) (*goquery.Document, error)
}

type ClientOptions struct {
	// zero means DefaultTimeout
	Timeout time.Duration
	// empty means DefaultUserAgent
	UserAgent        string
	CloudflareBypass bool
	// when set, request/response transcripts are written here while debug logging is on
	TranscriptDir string
	// when set, fetched pages are kept here for CacheTTL
	CacheDir string
	CacheTTL time.Duration
}

type Client struct {
	Http  *resty.Client
	Cache *Cache
}

func NewClient(opts ClientOptions) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept", "text/html,application/xhtml+xml")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetTimeout(timeout)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	telemetry.InstrumentResty(client, "permgen.lib.refpage/http")
	if opts.TranscriptDir != "" {
		output, err := restyutil.NewFilesystemOutput(opts.TranscriptDir)
		if err != nil {
			return nil, err
		}
		restyutil.RecordTranscripts(client, output)
	}

	out := &Client{Http: client}
	if opts.CacheDir != "" {
		cache, err := OpenCache(opts.CacheDir, opts.CacheTTL)
		if err != nil {
			return nil, err
		}
		out.Cache = cache
	}
	return out, nil
}

func (c *Client) Close() error {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Close()
}

// IsURL reports whether a location is fetched over http rather than read from disk.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Document fetches an http(s) location, any other location is read as a
// saved html file.
func (c *Client) Document(ctx context.Context, location string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "Document")
	defer span.End()
	span.SetAttributes(attribute.String("location", location))

	var (
		body []byte
		err  error
	)
	if IsURL(location) {
		body, err = c.fetch(ctx, location)
	} else {
		body, err = os.ReadFile(location)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load page")
		return nil, err
	}
	span.SetAttributes(attribute.Int("size", len(body)))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}
	return doc, nil
}

func (c *Client) fetch(ctx context.Context, link string) ([]byte, error) {
	if c.Cache != nil {
		body, err := c.Cache.Get(ctx, link)
		if err == nil {
			slog.InfoContext(ctx, "using cached reference page", "url", link)
			return body, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			slog.WarnContext(ctx, "failed to read page cache", "url", link, "err", err)
		}
	}

	slog.InfoContext(ctx, "fetching reference page", "url", link)

	res, err := c.Http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s returned %s", ErrUnexpectedStatus, link, res.Status())
	}

	slog.DebugContext(ctx, "fetched reference page", "url", link, "bytes", len(res.Body()))
	if c.Cache != nil {
		err = c.Cache.Set(ctx, link, res.Body())
		if err != nil {
			slog.WarnContext(ctx, "failed to cache page", "url", link, "err", err)
		}
	}
	return res.Body(), nil
}
