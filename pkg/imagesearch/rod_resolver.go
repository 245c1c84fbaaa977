package imagesearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type RodConfig struct {
	DebuggerURL string // connect to an existing Chrome when set
	Headless    bool
	SearchURL   string // printf template receiving the escaped phrase
	Selector    string
	Timeout     time.Duration
}

// RodResolver drives one shared browser page. Navigation on that page is a
// single-tenant resource, so Resolve holds mu for the whole lookup.
type RodResolver struct {
	cfg RodConfig

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

var _ Resolver = &RodResolver{}

func NewRodResolver(cfg RodConfig) *RodResolver {
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://www.bing.com/images/search?q=%s"
	}
	if cfg.Selector == "" {
		cfg.Selector = "img.mimg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &RodResolver{cfg: cfg}
}

func (r *RodResolver) Resolve(ctx context.Context, phrase string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	if err := r.ensureStartedLocked(); err != nil {
		return "", err
	}

	page := r.page.Context(ctx)
	target := fmt.Sprintf(r.cfg.SearchURL, url.QueryEscape(phrase))
	if err := page.Navigate(target); err != nil {
		r.resetLocked()
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}

	// Element retries until the selector appears or ctx expires.
	if _, err := page.Element(r.cfg.Selector); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	elements, err := page.Elements(r.cfg.Selector)
	if err != nil {
		return "", fmt.Errorf("query elements: %w", err)
	}

	for _, el := range elements {
		for _, attr := range []string{"src", "data-src"} {
			val, err := el.Attribute(attr)
			if err != nil || val == nil {
				continue
			}
			if strings.HasPrefix(*val, "http://") || strings.HasPrefix(*val, "https://") {
				return *val, nil
			}
		}
	}
	return "", ErrNoImage
}

func (r *RodResolver) ensureStartedLocked() error {
	if r.page != nil {
		return nil
	}

	controlURL := r.cfg.DebuggerURL
	if controlURL == "" {
		u, err := launcher.New().Headless(r.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create page: %w", err)
	}

	r.browser = browser
	r.page = page
	return nil
}

// resetLocked drops a browser that failed mid-navigation so the next call
// reconnects.
func (r *RodResolver) resetLocked() {
	if r.browser != nil {
		_ = r.browser.Close()
	}
	r.browser = nil
	r.page = nil
}

// Close shuts the shared browser down.
func (r *RodResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	r.page = nil
	return err
}
