// Package rodpage implements page.Page on top of a go-rod page.
package rodpage

import (
	"context"
	"fmt"
	"time"

	"adscroll/internal/page"

	"github.com/go-rod/rod"
)

// Page wraps a rod.Page.
type Page struct {
	page       *rod.Page
	navTimeout time.Duration
	opTimeout  time.Duration
}

// New wraps p. navTimeout bounds Navigate and the load wait that follows it;
// opTimeout bounds every other round trip to the browser (queries, reads,
// scripts) so a stuck page cannot block the caller forever.
func New(p *rod.Page, navTimeout, opTimeout time.Duration) *Page {
	return &Page{page: p, navTimeout: navTimeout, opTimeout: opTimeout}
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(url string) error {
	timed := p.page.Timeout(p.navTimeout)
	defer timed.CancelTimeout()

	if err := timed.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := timed.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// WaitPresent waits for selector. The returned element is detached from the
// wait deadline so it stays usable for the rest of the session.
func (p *Page) WaitPresent(selector string, timeout time.Duration) (page.Element, error) {
	timed := p.page.Timeout(timeout)
	defer timed.CancelTimeout()

	el, err := timed.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for element '%s': %w", selector, err)
	}
	return p.element(el), nil
}

// QueryAll does not wait; an empty slice means nothing matches right now.
func (p *Page) QueryAll(selector string) ([]page.Element, error) {
	timed := p.page.Timeout(p.opTimeout)
	defer timed.CancelTimeout()

	els, err := timed.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query CSS selector: %w", err)
	}
	return p.wrap(els), nil
}

// Exec evaluates script with args. *Element arguments are sent as remote
// object references so the script receives the live node.
func (p *Page) Exec(script string, args ...any) error {
	jsArgs := make([]interface{}, 0, len(args))
	for _, a := range args {
		if e, ok := a.(*Element); ok {
			jsArgs = append(jsArgs, e.el.Object)
			continue
		}
		jsArgs = append(jsArgs, a)
	}

	timed := p.page.Timeout(p.opTimeout)
	defer timed.CancelTimeout()

	if _, err := timed.Eval(script, jsArgs...); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	return nil
}

// HTML returns the serialized document.
func (p *Page) HTML() (string, error) {
	timed := p.page.Timeout(p.opTimeout)
	defer timed.CancelTimeout()

	html, err := timed.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	return html, nil
}

// element rebinds el to the page's own context so it outlives the deadline
// of the call that found it.
func (p *Page) element(el *rod.Element) *Element {
	return &Element{el: el.Context(p.page.GetContext()), page: p}
}

func (p *Page) wrap(els rod.Elements) []page.Element {
	out := make([]page.Element, 0, len(els))
	for _, el := range els {
		out = append(out, p.element(el))
	}
	return out
}

// Element wraps a rod.Element. Every call runs under the page's operation timeout.
type Element struct {
	el   *rod.Element
	page *Page
}

func (e *Element) timed() (*rod.Element, context.CancelFunc) {
	el := e.el.Timeout(e.page.opTimeout)
	return el, func() { el.CancelTimeout() }
}

// Query returns the first matching descendant or page.ErrNotFound.
func (e *Element) Query(selector string) (page.Element, error) {
	els, err := e.QueryAll(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, page.ErrNotFound
	}
	return els[0], nil
}

// QueryAll returns every matching descendant without waiting.
func (e *Element) QueryAll(selector string) ([]page.Element, error) {
	el, cancel := e.timed()
	defer cancel()

	els, err := el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return e.page.wrap(els), nil
}

// Text returns the rendered text of the node.
func (e *Element) Text() (string, error) {
	el, cancel := e.timed()
	defer cancel()
	return el.Text()
}

// Attribute reports whether name is set on the node. When it is, the DOM
// property is preferred so href comes back absolute; names without a string
// property (data-*) return the raw attribute.
func (e *Element) Attribute(name string) (string, bool, error) {
	el, cancel := e.timed()
	defer cancel()

	attr, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if attr == nil {
		return "", false, nil
	}

	if prop, err := el.Property(name); err == nil {
		if s, ok := prop.Val().(string); ok && s != "" {
			return s, true, nil
		}
	}
	return *attr, true, nil
}

// Visible reports whether the node is rendered with a non-empty box.
func (e *Element) Visible() (bool, error) {
	el, cancel := e.timed()
	defer cancel()
	return el.Visible()
}
