package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// Share card defaults: the 1.91:1 link-preview size most sites crop to.
const (
	DefaultWidth         = 1200
	DefaultHeight        = 630
	DefaultTimeout       = 30 * time.Second
	DefaultReadySelector = `[data-ready="true"]`
)

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/weekend".
	URL string

	// OutputPath is where the PNG is written. The parent directory is
	// created if needed.
	OutputPath string

	Width  int
	Height int

	// ReadySelector must be visible before the screenshot is taken.
	ReadySelector string

	Timeout time.Duration
}

func (o CaptureOptions) withDefaults() (CaptureOptions, error) {
	if o.URL == "" {
		return o, errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return o, errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.ReadySelector == "" {
		o.ReadySelector = DefaultReadySelector
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

// CapturePagePNG launches a headless Chromium via chromedp, loads opts.URL,
// waits for ReadySelector and writes a viewport-sized PNG to OutputPath.
func CapturePagePNG(parentCtx context.Context, opts CaptureOptions) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.WindowSize(opts.Width, opts.Height),
		)...,
	)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.ReadySelector, chromedp.ByQuery),
		// Let web fonts settle.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.CaptureScreenshot(&png),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}
