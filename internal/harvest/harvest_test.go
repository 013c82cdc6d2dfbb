package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"adscroll/internal/listing"
	"adscroll/internal/page/htmlpage"

	"github.com/stretchr/testify/require"
)

const feedURL = "https://divar.ir/s/babolsar/rent-apartment"

const emptyFeed = `<html><body><div class="content-dd848"></div></body></html>`

const loadMoreButton = `<button class="post-list__load-more-btn-be092">more</button>`

func card(id, title string) string {
	return fmt.Sprintf(`<div class="post-list__items-container-e44b2" data-index="%s">`+
		`<h2 class="unsafe-kt-post-card__title">%s</h2>`+
		`<div class="unsafe-kt-post-card__description">deposit %s</div>`+
		`<div class="unsafe-kt-post-card__description">rent %s</div>`+
		`</div>`, id, title, id, id)
}

func newFeed(t *testing.T, html string) *htmlpage.Page {
	t.Helper()
	p, err := htmlpage.FromString(html)
	require.NoError(t, err)
	return p
}

func newHarvester(opts Options) (*Harvester, *[]time.Duration) {
	h := New(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var slept []time.Duration
	h.SetSleep(func(d time.Duration) { slept = append(slept, d) })
	return h, &slept
}

// scrollFeed appends batches[n] on the n-th scroll (1-based).
func scrollFeed(t *testing.T, p *htmlpage.Page, batches map[int]string, onClick func(p *htmlpage.Page, clicks int)) *int {
	scrolls := 0
	clicks := 0
	p.OnScript(func(p *htmlpage.Page, script string, args []any) error {
		switch script {
		case ScrollScript:
			scrolls++
			container, ok := args[0].(*htmlpage.Element)
			require.True(t, ok)
			require.True(t, container.Is(".content-dd848"))
			container.SetScrollTop(container.ScrollTop() + args[1].(int))
			if batch, ok := batches[scrolls]; ok {
				p.Append(".content-dd848", batch)
			}
			return nil
		case ClickScript:
			clicks++
			if onClick == nil {
				return errors.New("unexpected click")
			}
			onClick(p, clicks)
			return nil
		}
		return fmt.Errorf("unknown script %q", script)
	})
	return &scrolls
}

func TestRunStopsAfterStallRounds(t *testing.T) {
	p := newFeed(t, emptyFeed)
	scrolls := scrollFeed(t, p, map[int]string{1: card("0", "A") + card("1", "B")}, nil)

	h, slept := newHarvester(DefaultOptions())
	result, stats, err := h.Run(context.Background(), p, feedURL)
	require.NoError(t, err)

	require.Equal(t, feedURL, p.URL())
	require.Equal(t, []listing.ID{"0", "1"}, result.IDs())
	recA, _ := result.Get("0")
	require.Equal(t, listing.Record{Title: "A", Deposit: "deposit 0", Rent: "rent 0", Agency: listing.NotAvailable, Link: listing.NotAvailable}, recA)

	require.Equal(t, 1+3, *scrolls)
	require.Equal(t, Stats{Scrolls: 4, StallRounds: 3, Reason: ReasonExhausted}, stats)
	require.Len(t, *slept, 4)
	for _, d := range *slept {
		require.Equal(t, 2500*time.Millisecond, d)
	}
}

func TestRunNeverFindingCards(t *testing.T) {
	p := newFeed(t, emptyFeed)
	scrolls := scrollFeed(t, p, nil, nil)

	h, _ := newHarvester(DefaultOptions())
	result, stats, err := h.Run(context.Background(), p, feedURL)
	require.NoError(t, err)
	require.Equal(t, 0, result.Len())
	require.Equal(t, 3, *scrolls)
	require.Equal(t, ReasonExhausted, stats.Reason)
}

func TestRunDedupAndMonotonic(t *testing.T) {
	p := newFeed(t, emptyFeed)
	scrollFeed(t, p, map[int]string{
		1: card("0", "A") + card("1", "B"),
		// virtualized list re-renders overlapping cards
		2: card("1", "B again") + card("2", "C"),
		3: `<div class="post-list__items-container-e44b2"><h2 class="unsafe-kt-post-card__title">skeleton</h2></div>`,
		4: card("2", "C again") + card("3", "D") + card("0", "A again"),
	}, nil)

	h, _ := newHarvester(DefaultOptions())
	var cycles []Cycle
	h.Observe(func(c Cycle) { cycles = append(cycles, c) })

	result, _, err := h.Run(context.Background(), p, feedURL)
	require.NoError(t, err)

	require.Equal(t, []listing.ID{"0", "1", "2", "3"}, result.IDs())
	rec, _ := result.Get("1")
	require.Equal(t, "B", rec.Title)

	prev := 0
	for _, c := range cycles {
		require.GreaterOrEqual(t, c.Total, prev)
		prev = c.Total
	}
	require.Equal(t, []int{2, 1, 0, 1, 0, 0, 0}, newCounts(cycles))
}

func TestRunLoadMoreKeepsGoing(t *testing.T) {
	p := newFeed(t, `<html><body><div class="content-dd848"></div>`+loadMoreButton+`</body></html>`)
	const batches = 5
	scrolls := scrollFeed(t, p, map[int]string{1: card("0", "A") + card("1", "B")},
		func(p *htmlpage.Page, clicks int) {
			p.Append(".content-dd848", card(fmt.Sprintf("more-%d", clicks), "more"))
			if clicks == batches {
				p.Remove(".post-list__load-more-btn-be092")
			}
		})

	h, slept := newHarvester(DefaultOptions())
	var cycles []Cycle
	h.Observe(func(c Cycle) { cycles = append(cycles, c) })

	result, stats, err := h.Run(context.Background(), p, feedURL)
	require.NoError(t, err)
	require.Equal(t, 2+batches, result.Len())
	require.Equal(t, batches, stats.LoadMoreClicks)
	require.Equal(t, 1+2*batches+3, *scrolls)
	require.Equal(t, ReasonExhausted, stats.Reason)

	clicks := 0
	for _, c := range cycles {
		if c.LoadMore {
			clicks++
			require.Zero(t, c.Stall)
		}
		if clicks < batches {
			require.Less(t, c.Stall, 3)
		}
	}

	var settles int
	for _, d := range *slept {
		if d == 5*time.Second {
			settles++
		}
	}
	require.Equal(t, batches, settles)
}

func TestRunLoadMoreSkipsButDoesNotResetStall(t *testing.T) {
	p := newFeed(t, emptyFeed)
	// the control shows up on the third scroll, gets one empty click, then disappears
	scrollFeed(t, p, map[int]string{1: card("0", "A"), 3: loadMoreButton},
		func(p *htmlpage.Page, clicks int) {
			p.Remove(".post-list__load-more-btn-be092")
		})

	h, _ := newHarvester(DefaultOptions())
	var cycles []Cycle
	h.Observe(func(c Cycle) { cycles = append(cycles, c) })

	_, stats, err := h.Run(context.Background(), p, feedURL)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 1, 2, 3}, stalls(cycles))
	require.True(t, cycles[2].LoadMore)
	require.Equal(t, 1, stats.LoadMoreClicks)
}

func TestRunHiddenLoadMoreIsIgnored(t *testing.T) {
	p := newFeed(t, `<html><body><div class="content-dd848"></div>`+
		`<div style="display: none">`+loadMoreButton+`</div></body></html>`)
	scrollFeed(t, p, nil, nil)

	h, _ := newHarvester(DefaultOptions())
	_, stats, err := h.Run(context.Background(), p, feedURL)
	require.NoError(t, err)
	require.Zero(t, stats.LoadMoreClicks)
	require.Equal(t, 3, stats.Scrolls)
}

func TestRunStopsAtMaxScrolls(t *testing.T) {
	p := newFeed(t, `<html><body><div class="content-dd848"></div>`+loadMoreButton+`</body></html>`)
	scrolls := scrollFeed(t, p, nil, func(p *htmlpage.Page, clicks int) {})

	opts := DefaultOptions()
	opts.MaxScrolls = 20
	h, _ := newHarvester(opts)
	_, stats, err := h.Run(context.Background(), p, feedURL)
	require.NoError(t, err)
	require.Equal(t, 20, *scrolls)
	require.Equal(t, Stats{Scrolls: 20, LoadMoreClicks: 20, Reason: ReasonMaxScrolls}, stats)
}

func TestRunMissingContainer(t *testing.T) {
	p := newFeed(t, `<html><body><p>maintenance</p></body></html>`)
	h, _ := newHarvester(DefaultOptions())

	result, _, err := h.Run(context.Background(), p, feedURL)
	require.ErrorIs(t, err, ErrContainerMissing)
	require.Nil(t, result)
}

func TestRunStaticPage(t *testing.T) {
	p := newFeed(t, `<html><body><div class="content-dd848">`+
		card("4", "X")+card("5", "Y")+`</div>`+loadMoreButton+`</body></html>`)

	h, _ := newHarvester(DefaultOptions())
	result, stats, err := h.Run(context.Background(), p, feedURL)
	require.NoError(t, err)
	require.Equal(t, []listing.ID{"4", "5"}, result.IDs())
	require.Equal(t, 4, stats.Scrolls)
	require.Zero(t, stats.LoadMoreClicks)
}

func TestRunCanceled(t *testing.T) {
	p := newFeed(t, emptyFeed)
	scrollFeed(t, p, map[int]string{1: card("0", "A"), 2: card("1", "B")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, _ := newHarvester(DefaultOptions())
	h.Observe(func(c Cycle) {
		if c.Index == 0 {
			cancel()
		}
	})

	result, stats, err := h.Run(ctx, p, feedURL)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []listing.ID{"0"}, result.IDs())
	require.Equal(t, ReasonCanceled, stats.Reason)
}

func TestTryLoadMoreAbsent(t *testing.T) {
	p := newFeed(t, emptyFeed)
	h, slept := newHarvester(DefaultOptions())
	require.False(t, h.TryLoadMore(p))
	require.Empty(t, *slept)
}

func newCounts(cycles []Cycle) []int {
	out := make([]int, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, c.New)
	}
	return out
}

func stalls(cycles []Cycle) []int {
	out := make([]int, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, c.Stall)
	}
	return out
}
