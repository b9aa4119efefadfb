// Package browser drives a headless Chrome tab for scraping client-rendered
// pages.
package browser

import "context"

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and waits for the page load event.
	Navigate(ctx context.Context, url string) error
	// HTML returns the current serialized DOM.
	HTML(ctx context.Context) (string, error)
	// ScrollToLast scrolls the last element matching selector into view so
	// lazily rendered content below it gets loaded. With no match it scrolls
	// one viewport down.
	ScrollToLast(ctx context.Context, selector string) error
}

// Browser hands out tabs. The returned release func must always be called.
type Browser interface {
	NewPage(ctx context.Context) (Page, func(), error)
}

// EndpointProvider supplies DevTools endpoints of remote browsers, for
// example pooled containers. release is called when the tab is closed.
type EndpointProvider interface {
	Acquire(ctx context.Context) (wsURL string, release func(), err error)
}
