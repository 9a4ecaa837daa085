// Package fetch provides the page-fetch capability consumed by the
// probe engine. Failures never surface as errors: a timeout, DNS
// problem, TLS problem or non-2xx response all collapse into a Result
// with an empty body, so callers only ever branch on "got a page or
// didn't".
package fetch

import (
	"context"
	"net/http/cookiejar"
	"time"

	"restockd/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type Result struct {
	// Body is the page text, empty when the fetch failed.
	Body string
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int
}

// Ok reports whether a usable body was returned.
func (r Result) Ok() bool {
	return r.Body != ""
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) Result
}

type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher builds a fetcher with a hard per-request timeout.
// The client carries a cloudflare bypass transport and a browser
// user-agent since order pages routinely sit behind WAF challenges,
// plus a politeness rate limit so repeated checks don't hammer shops.
func NewHTTPFetcher(timeout time.Duration) (*HTTPFetcher, error) {
	client := resty.New()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(timeout)

	// 2 requests max per second
	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(2, 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "restockd.lib.fetch")

	return &HTTPFetcher{client: client}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) Result {
	res, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return Result{}
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return Result{StatusCode: res.StatusCode()}
	}
	return Result{
		Body:       res.String(),
		StatusCode: res.StatusCode(),
	}
}
