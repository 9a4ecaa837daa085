package watcher

import (
	"context"
	"fmt"
	"time"

	"restockd/lib/fetch"
	"restockd/lib/htmlutil"

	"go.opentelemetry.io/otel/attribute"
)

type pageClass int

const (
	pageNotSane pageClass = iota
	pageOutOfStock
	pagePurchasable
)

// classifyPage runs the sanity gate and the out-of-stock patterns over
// a fetched page. Patterns are matched against the raw body and the
// rendered text, so a banner split across inline tags still counts.
func classifyPage(body string, target Target) pageClass {
	text := htmlutil.VisibleText(body)

	if len(target.MustContainAny) > 0 &&
		!htmlutil.ContainsAnyFold(body, target.MustContainAny) &&
		!htmlutil.ContainsAnyFold(text, target.MustContainAny) {
		return pageNotSane
	}

	for _, pattern := range target.OutOfStockPatterns {
		if pattern.MatchString(body) || pattern.MatchString(text) {
			return pageOutOfStock
		}
	}
	return pagePurchasable
}

func httpReason(res fetch.Result) string {
	if res.StatusCode == 0 {
		return "http_error"
	}
	return fmt.Sprintf("http_%d", res.StatusCode)
}

// Probe fetches a target's candidate urls in priority order and
// produces a conclusive OUT or IN outcome, or ERROR after exhausting
// every url. An out-of-stock match is trusted immediately; a page that
// looks purchasable is re-read after a delay so that stock flashing
// available for a few seconds doesn't raise a false alert.
func Probe(ctx context.Context, target Target, fetcher fetch.Fetcher, cfg Config) Outcome {
	ctx, span := tracer.Start(ctx, "Probe")
	defer span.End()
	span.SetAttributes(attribute.String("target", target.Name))

	lastReason := "no_urls"
	lastUrl := ""

	for _, url := range target.Urls {
		lastUrl = url

		res := fetcher.Fetch(ctx, url)
		if !res.Ok() {
			lastReason = httpReason(res)
			continue
		}

		switch classifyPage(res.Body, target) {
		case pageNotSane:
			lastReason = fmt.Sprintf("sanity_failed@%s", url)
			continue
		case pageOutOfStock:
			return Outcome{Kind: OutcomeOut, Url: url, Reason: "out_of_stock_keyword"}
		}

		// the page looks purchasable, re-read the same url after a
		// delay before believing it
		select {
		case <-time.After(time.Duration(cfg.ConfirmDelayMs) * time.Millisecond):
		case <-ctx.Done():
		}

		confirm := fetcher.Fetch(ctx, url)
		if !confirm.Ok() {
			lastReason = "confirm_" + httpReason(confirm)
			continue
		}

		switch classifyPage(confirm.Body, target) {
		case pageNotSane:
			lastReason = fmt.Sprintf("confirm_sanity_failed@%s", url)
			continue
		case pageOutOfStock:
			return Outcome{Kind: OutcomeOut, Url: url, Reason: "flap_back_to_out"}
		}

		return Outcome{Kind: OutcomeIn, Url: url, Reason: "confirmed_in_stock"}
	}

	return Outcome{Kind: OutcomeError, Url: lastUrl, Reason: lastReason}
}
