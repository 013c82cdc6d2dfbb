// Package harvest drives an infinite-scroll feed until it stops producing
// new listing cards.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adscroll/internal/listing"
	"adscroll/internal/page"
)

// ErrContainerMissing means the feed's scroll container never appeared.
// The run cannot continue: either the site layout changed or the page did not load.
var ErrContainerMissing = errors.New("scroll container not found")

// Scripts passed to page.Page.Exec.
const (
	ScrollScript = `function(el, step) { el.scrollTop += step; }`
	ClickScript  = `function(el) { el.click(); }`
)

// Options tunes the loop. Zero values are not defaults; start from DefaultOptions.
type Options struct {
	ScrollPause    time.Duration
	ScrollStep     int
	MaxScrolls     int
	MaxStallRounds int
	WaitTimeout    time.Duration
	Selectors      listing.Selectors
}

// DefaultOptions returns the tuning used against the live site.
func DefaultOptions() Options {
	return Options{
		ScrollPause:    2500 * time.Millisecond,
		ScrollStep:     1000,
		MaxScrolls:     1000,
		MaxStallRounds: 3,
		WaitTimeout:    20 * time.Second,
		Selectors:      listing.DefaultSelectors(),
	}
}

// Reason says why a run ended.
type Reason string

const (
	ReasonExhausted  Reason = "exhausted"
	ReasonMaxScrolls Reason = "max-scrolls"
	ReasonCanceled   Reason = "canceled"
)

// Stats summarizes a finished run.
type Stats struct {
	Scrolls        int
	LoadMoreClicks int
	StallRounds    int
	Reason         Reason
}

// Cycle is reported after every scroll iteration.
type Cycle struct {
	Index    int
	New      int
	Total    int
	Stall    int
	LoadMore bool
}

// Harvester runs the scroll-extract loop against one page at a time.
type Harvester struct {
	opts     Options
	logger   *slog.Logger
	sleep    func(time.Duration)
	observer func(Cycle)
}

// New returns a Harvester that sleeps for real between scrolls.
func New(opts Options, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{
		opts:   opts,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// SetSleep replaces the settle wait.
func (h *Harvester) SetSleep(fn func(time.Duration)) {
	h.sleep = fn
}

// Observe registers fn to receive a Cycle after each iteration.
func (h *Harvester) Observe(fn func(Cycle)) {
	h.observer = fn
}

// TryLoadMore clicks the load-more control when it exists and is visible.
// A missing control is the normal case on pure infinite-scroll pages, so
// every failure is reported as false.
func (h *Harvester) TryLoadMore(p page.Page) bool {
	buttons, err := p.QueryAll(h.opts.Selectors.LoadMore)
	if err != nil || len(buttons) == 0 {
		h.logger.Debug("load more control not found")
		return false
	}

	btn := buttons[0]
	visible, err := btn.Visible()
	if err != nil || !visible {
		h.logger.Debug("load more control not visible")
		return false
	}

	// Dispatched through the DOM so layout and overlays cannot intercept it.
	if err := p.Exec(ClickScript, btn); err != nil {
		h.logger.Debug("load more click failed", slog.String("error", err.Error()))
		return false
	}

	h.logger.Info("load more control clicked")
	h.sleep(2 * h.opts.ScrollPause)
	return true
}

// Run opens url and harvests until the feed is exhausted, MaxScrolls is
// reached or ctx is canceled. On cancellation the listings gathered so far
// are returned together with ctx.Err().
func (h *Harvester) Run(ctx context.Context, p page.Page, url string) (*listing.ResultSet, Stats, error) {
	sel := h.opts.Selectors

	if err := p.Navigate(url); err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open %s: %w", url, err)
	}
	container, err := p.WaitPresent(sel.Container, h.opts.WaitTimeout)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrContainerMissing, err)
	}

	seen := make(map[listing.ID]struct{})
	result := listing.NewResultSet()
	stats := Stats{Reason: ReasonMaxScrolls}
	stall := 0

	for i := 0; i < h.opts.MaxScrolls; i++ {
		if err := ctx.Err(); err != nil {
			stats.Reason = ReasonCanceled
			stats.StallRounds = stall
			return result, stats, err
		}

		if err := p.Exec(ScrollScript, container, h.opts.ScrollStep); err != nil {
			h.logger.Warn("scroll failed", slog.Int("scroll", i+1), slog.String("error", err.Error()))
		}
		h.sleep(h.opts.ScrollPause)
		stats.Scrolls++

		newCount := h.scan(p, seen, result)

		clicked := false
		switch {
		case newCount > 0:
			stall = 0
		case h.TryLoadMore(p):
			// The click may still be loading; this round does not count as a stall.
			clicked = true
			stats.LoadMoreClicks++
		default:
			stall++
		}

		h.logger.Info("scroll",
			slog.Int("scroll", i+1),
			slog.Int("max", h.opts.MaxScrolls),
			slog.Int("new", newCount),
			slog.Int("total", result.Len()),
			slog.Int("stall", stall))
		if h.observer != nil {
			h.observer(Cycle{Index: i, New: newCount, Total: result.Len(), Stall: stall, LoadMore: clicked})
		}

		if stall >= h.opts.MaxStallRounds {
			h.logger.Info("no more content loading", slog.Int("stall_rounds", stall))
			stats.Reason = ReasonExhausted
			break
		}
	}

	stats.StallRounds = stall
	return result, stats, nil
}

// scan extracts every card whose identifier has not been seen yet and
// returns how many were added.
func (h *Harvester) scan(p page.Page, seen map[listing.ID]struct{}, result *listing.ResultSet) int {
	sel := h.opts.Selectors

	cards, err := p.QueryAll(sel.Card)
	if err != nil {
		h.logger.Warn("card query failed", slog.String("error", err.Error()))
		return 0
	}
	h.logger.Debug("detected cards", slog.Int("cards", len(cards)))

	added := 0
	for _, card := range cards {
		id, ok := listing.ReadID(card, sel)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result.Add(id, listing.Extract(card, sel))
		added++
	}
	return added
}
