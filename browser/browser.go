// Package browser provisions web browsing tools backed by a headless Chrome
// instance driven through chromedp. One browser is launched per session and
// released on session disposal.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/mapstructure"

	"github.com/hupe1980/sidekick/logging"
	"github.com/hupe1980/sidekick/session"
	"github.com/hupe1980/sidekick/tool"
)

// Options configures the browser provider.
type Options struct {
	// Headless controls whether Chrome runs without a visible window.
	Headless bool
	// ActionTimeout bounds a single browser tool call.
	ActionTimeout time.Duration
	// MaxTextBytes caps extracted page text.
	MaxTextBytes int
	// Logger receives provider diagnostics.
	Logger logging.Logger
}

// Provider launches a Chrome instance per acquisition and exposes browsing
// tools bound to it. Implements session.Provider.
type Provider struct {
	opts Options
}

// NewProvider creates a browser provider.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Headless:      true,
		ActionTimeout: 30 * time.Second,
		MaxTextBytes:  64 * 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Provider{opts: opts}
}

// Acquire launches the browser and returns its tools plus the resources to
// release on disposal. Resources are returned in release order: the browser
// context first, the exec allocator second, so the browser is shut down
// before its host process handle.
func (p *Provider) Acquire(ctx context.Context) ([]session.Tool, []session.Resource, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.opts.Headless),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser process now so launch failures surface here instead
	// of on the first tool call.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	p.opts.Logger.Info("browser launched", "headless", p.opts.Headless)

	b := &instance{ctx: browserCtx, opts: p.opts}

	tools := []session.Tool{
		b.navigateTool(),
		b.extractTextTool(),
		b.clickTool(),
		b.currentWebpageTool(),
	}

	resources := []session.Resource{
		&resource{
			name: "browser",
			release: func(context.Context) error {
				return chromedp.Cancel(browserCtx)
			},
		},
		&resource{
			name: "browser-allocator",
			release: func(context.Context) error {
				cancelAlloc()
				return nil
			},
		},
	}

	return tools, resources, nil
}

// resource wraps a release function as a session.Resource.
type resource struct {
	name    string
	release func(ctx context.Context) error
}

func (r *resource) Name() string { return r.name }

func (r *resource) Release(ctx context.Context) error { return r.release(ctx) }

// instance binds the tools to one running browser.
type instance struct {
	ctx  context.Context
	opts Options
}

// run executes chromedp actions against the browser with the action timeout.
func (b *instance) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(b.ctx, b.opts.ActionTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

type navigateArgs struct {
	URL string `json:"url" mapstructure:"url" description:"The fully qualified URL to navigate to"`
}

func (b *instance) navigateTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"navigate_browser",
		"Navigate the browser to the given URL",
		navigateArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in navigateArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
				return "", tool.NewToolError("navigate_browser",
					fmt.Sprintf("url %q must start with http:// or https://", in.URL),
					tool.CodeValidationError)
			}

			if err := b.run(chromedp.Navigate(in.URL)); err != nil {
				return "", fmt.Errorf("navigate to %s: %w", in.URL, err)
			}
			return fmt.Sprintf("Navigated to %s", in.URL), nil
		},
	)
}

type extractTextArgs struct {
	Selector string `json:"selector,omitempty" mapstructure:"selector" description:"CSS selector to extract text from (defaults to the whole page body)"`
}

func (b *instance) extractTextTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"extract_text",
		"Extract the visible text of the current page or of a CSS selector",
		extractTextArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in extractTextArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			selector := in.Selector
			if selector == "" {
				selector = "body"
			}

			var text string
			if err := b.run(chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
				return "", fmt.Errorf("extract text from %q: %w", selector, err)
			}
			if len(text) > b.opts.MaxTextBytes {
				text = text[:b.opts.MaxTextBytes]
			}
			if strings.TrimSpace(text) == "" {
				return "No text found.", nil
			}
			return text, nil
		},
	)
}

type clickArgs struct {
	Selector string `json:"selector" mapstructure:"selector" description:"CSS selector of the element to click"`
}

func (b *instance) clickTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"click_element",
		"Click the element matching a CSS selector on the current page",
		clickArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in clickArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			if err := b.run(chromedp.Click(in.Selector, chromedp.ByQuery)); err != nil {
				return "", fmt.Errorf("click %q: %w", in.Selector, err)
			}
			return fmt.Sprintf("Clicked element %q", in.Selector), nil
		},
	)
}

type currentWebpageArgs struct{}

func (b *instance) currentWebpageTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"current_webpage",
		"Return the URL of the page the browser is currently on",
		currentWebpageArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var location string
			if err := b.run(chromedp.Location(&location)); err != nil {
				return "", fmt.Errorf("read current location: %w", err)
			}
			return location, nil
		},
	)
}
