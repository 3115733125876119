// Package headless renders client-side listing pages with headless Chrome.
package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/cart-crawler/internal/crawler"
)

const (
	// ListingSelector matches one listing element per cart on a rendered page.
	ListingSelector = `div[id^="pdat_"]`
	listingIDPrefix = "pdat_"

	defaultNavigationTimeout = 30 * time.Second
	defaultWaitTimeout       = 5 * time.Second
)

// Config controls the behavior of the headless renderer.
type Config struct {
	BaseURL           string
	Category          int
	Sub               int
	UserAgent         string
	Headless          bool
	NavigationTimeout time.Duration
	// WaitTimeout bounds the wait for the first listing element. A page that
	// shows none within it is reported as empty.
	WaitTimeout time.Duration
}

// Renderer implements crawler.ListingRenderer with one shared browser and a
// tab per page.
type Renderer struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedp launches the shared browser and returns a Renderer.
func NewChromedp(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Renderer{
		cfg:           cfg,
		logger:        logger.Named("headless"),
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	headless := any(false)
	if cfg.Headless {
		headless = "new"
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// Close shuts down the browser.
func (r *Renderer) Close() {
	if r == nil {
		return
	}
	r.browserCancel()
	r.allocCancel()
}

// ListPage renders one listing page and returns the identifiers on it in
// document order.
func (r *Renderer) ListPage(ctx context.Context, page int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	// The first Run attaches the tab and binds its event loop to the context
	// it is given, so it gets tabCtx and never a per-action timeout.
	if err := chromedp.Run(tabCtx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render page %d: %w", page, ctx.Err())
		}
		return nil, fmt.Errorf("open tab for page %d: %w", page, err)
	}

	pageURL := crawler.ListingURL(r.cfg.BaseURL, r.cfg.Category, r.cfg.Sub, page)
	navCtx, cancelNav := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	err := chromedp.Run(navCtx, r.setupAction(), chromedp.Navigate(pageURL))
	cancelNav()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render page %d: %w", page, ctx.Err())
		}
		return nil, fmt.Errorf("navigate page %d: %w", page, err)
	}

	var nodes []*cdp.Node
	waitCtx, cancelWait := context.WithTimeout(tabCtx, r.cfg.WaitTimeout)
	defer cancelWait()
	err = chromedp.Run(waitCtx, chromedp.Nodes(ListingSelector, &nodes, chromedp.ByQueryAll))
	if err != nil {
		if isWaitTimeout(err, ctx.Err()) {
			r.logger.Debug("no listing elements", zap.Int("page", page))
			return []string{}, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render page %d: %w", page, ctx.Err())
		}
		return nil, fmt.Errorf("query listing page %d: %w", page, err)
	}
	return idsFromNodes(nodes), nil
}

func (r *Renderer) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if r.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// isWaitTimeout reports whether err is the listing wait expiring rather than
// the caller giving up.
func isWaitTimeout(err error, callerErr error) bool {
	return callerErr == nil && errors.Is(err, context.DeadlineExceeded)
}

func idsFromNodes(nodes []*cdp.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if id := listingID(node.AttributeValue("id")); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func listingID(elementID string) string {
	id, ok := strings.CutPrefix(elementID, listingIDPrefix)
	if !ok {
		return ""
	}
	return id
}
