package webceph

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/mkweon/cephauto/internal/ctxlog"
)

// Browser owns a Chrome instance for one run. Downloads land in
// DownloadDir so the report step knows where to look.
type Browser struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	DownloadDir string
}

// OpenBrowser launches Chrome with downloads routed to a fresh run
// directory. The window is kept visible; the analysis site renders its
// viewer with WebGL, which headless Chrome does not always support.
func OpenBrowser(ctx context.Context, downloadRoot string) (*Browser, error) {
	logger := ctxlog.FromContext(ctx)

	downloadDir := fmt.Sprintf("%s/run_%s", downloadRoot, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-popup-blocking", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir),
	)
	if err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	logger.Debug("Browser started", "download_dir", downloadDir)
	return &Browser{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		DownloadDir: downloadDir,
	}, nil
}

// Run executes chromedp actions with a per-operation timeout.
func (b *Browser) Run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx := b.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return chromedp.Run(ctx, actions...)
}

// Close shuts the browser down.
func (b *Browser) Close(ctx context.Context) error {
	b.cancelCtx()
	b.cancelAlloc()
	ctxlog.FromContext(ctx).Debug("Browser closed")
	return nil
}
