package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/chromedp"
)

// Chrome implements Browser with chromedp. Without an EndpointProvider every
// page starts its own local headless Chrome process.
type Chrome struct {
	endpoints EndpointProvider
	execOpts  []chromedp.ExecAllocatorOption
	logger    *slog.Logger
}

// LocalOptions configures locally launched Chrome processes.
type LocalOptions struct {
	ExecPath  string // empty means look up chrome on PATH
	UserAgent string
	NoSandbox bool
}

func NewLocal(opts LocalOptions, logger *slog.Logger) *Chrome {
	execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	execOpts = append(execOpts,
		chromedp.WindowSize(1280, 2000),
		chromedp.Flag("mute-audio", true),
	)
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.NoSandbox {
		execOpts = append(execOpts, chromedp.NoSandbox)
	}
	return &Chrome{execOpts: execOpts, logger: logger}
}

func NewRemote(endpoints EndpointProvider, logger *slog.Logger) *Chrome {
	return &Chrome{endpoints: endpoints, logger: logger}
}

// NewPage opens a tab. The tab outlives ctx; only release closes it, so a
// page can keep working after the request that opened it is gone.
func (c *Chrome) NewPage(ctx context.Context) (Page, func(), error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
		giveBack    = func() {}
	)

	if c.endpoints != nil {
		url, release, err := c.endpoints.Acquire(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("browser: acquiring remote endpoint: %w", err)
		}
		giveBack = release
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), url)
		c.logger.Debug("using remote browser", slog.String("endpoint", url))
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), c.execOpts...)
	}

	tabCtx, cancel := chromedp.NewContext(allocCtx)
	// chromedp's cancel waits for the browser to stop and must not run twice.
	cancelTab := sync.OnceFunc(cancel)
	release := func() {
		cancelTab()
		cancelAlloc()
		giveBack()
	}

	// The first Run allocates the browser and starts the tab's event loop on
	// the context it is given, so it runs on tabCtx. The caller's ctx only
	// bounds startup.
	stop := context.AfterFunc(ctx, cancelTab)
	err := chromedp.Run(tabCtx)
	if !stop() || err != nil {
		release()
		if err == nil {
			err = ctx.Err()
		}
		return nil, nil, fmt.Errorf("browser: starting tab: %w", err)
	}

	return &chromePage{tab: tabCtx}, release, nil
}

type chromePage struct {
	tab context.Context
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := runContext(p.tab, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Navigate(url))
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := runContext(p.tab, ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) ScrollToLast(ctx context.Context, selector string) error {
	sel, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
		const rows = document.querySelectorAll(%s);
		if (rows.length === 0) { window.scrollBy(0, window.innerHeight); return 0; }
		rows[rows.length - 1].scrollIntoView({block: "end"});
		return rows.length;
	})()`, sel)

	runCtx, cancel := runContext(p.tab, ctx)
	defer cancel()

	var n int
	return chromedp.Run(runCtx, chromedp.Evaluate(script, &n))
}

// runContext derives a context from the chromedp tab that also ends when
// the caller's ctx does. Only actions after the tab has started may use it;
// cancelling it ends the action, not the tab.
func runContext(tab, caller context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := caller.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(tab, deadline)
	} else {
		runCtx, cancel = context.WithCancel(tab)
	}
	stop := context.AfterFunc(caller, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
