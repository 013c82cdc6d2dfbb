// Package htmlpage implements page.Page over a static goquery document.
//
// It backs the offline replay mode (a saved HTML page) and the harvester
// tests, where a ScriptFunc grows the document to simulate lazy rendering.
package htmlpage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"adscroll/internal/page"

	"github.com/PuerkitoBio/goquery"
)

// ErrScriptUnsupported is returned by Exec when no ScriptFunc is installed.
var ErrScriptUnsupported = errors.New("static page cannot run scripts")

// ScriptFunc handles Exec calls. Element arguments arrive as *Element.
type ScriptFunc func(p *Page, script string, args []any) error

// Page is a static document.
type Page struct {
	doc    *goquery.Document
	url    string
	script ScriptFunc
}

// FromReader parses an HTML document.
func FromReader(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Page{doc: doc}, nil
}

// FromString parses an HTML document held in memory.
func FromString(html string) (*Page, error) {
	return FromReader(strings.NewReader(html))
}

// FromFile parses the HTML document at path.
func FromFile(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return FromReader(f)
}

// OnScript installs fn as the Exec handler.
func (p *Page) OnScript(fn ScriptFunc) {
	p.script = fn
}

// URL returns the last address passed to Navigate.
func (p *Page) URL() string {
	return p.url
}

// Navigate records url. The document is already loaded.
func (p *Page) Navigate(url string) error {
	p.url = url
	return nil
}

// WaitPresent returns the first match immediately; a static document never changes on its own.
func (p *Page) WaitPresent(selector string, timeout time.Duration) (page.Element, error) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("failed to wait for element '%s': %w", selector, page.ErrNotFound)
	}
	return &Element{sel: sel}, nil
}

// QueryAll returns every match in document order.
func (p *Page) QueryAll(selector string) ([]page.Element, error) {
	return wrap(p.doc.Find(selector)), nil
}

// Exec hands script to the OnScript handler, or fails with
// ErrScriptUnsupported when none is installed.
func (p *Page) Exec(script string, args ...any) error {
	if p.script == nil {
		return ErrScriptUnsupported
	}
	return p.script(p, script, args)
}

// HTML serializes the current document, mutations included.
func (p *Page) HTML() (string, error) {
	return goquery.OuterHtml(p.doc.Selection)
}

// Append adds html as the last children of every element matching selector.
func (p *Page) Append(selector, html string) {
	p.doc.Find(selector).AppendHtml(html)
}

// Remove deletes every element matching selector.
func (p *Page) Remove(selector string) {
	p.doc.Find(selector).Remove()
}

// Element is one goquery node.
type Element struct {
	sel *goquery.Selection
}

// Query returns the first matching descendant or page.ErrNotFound.
func (e *Element) Query(selector string) (page.Element, error) {
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, page.ErrNotFound
	}
	return &Element{sel: found}, nil
}

// QueryAll returns every matching descendant.
func (e *Element) QueryAll(selector string) ([]page.Element, error) {
	return wrap(e.sel.Find(selector)), nil
}

// Text returns the combined text of the node and its descendants.
func (e *Element) Text() (string, error) {
	return e.sel.Text(), nil
}

// Attribute returns the raw attribute value and whether it is set.
func (e *Element) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// Visible is false when the node or an ancestor is hidden by attribute or inline style.
func (e *Element) Visible() (bool, error) {
	for s := e.sel; s.Length() > 0; s = s.Parent() {
		if _, hidden := s.Attr("hidden"); hidden {
			return false, nil
		}
		style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}

// Is reports whether the element matches selector.
func (e *Element) Is(selector string) bool {
	return e.sel.Is(selector)
}

// ScrollTop reads the data-scroll-top bookkeeping attribute kept by scroll handlers.
func (e *Element) ScrollTop() int {
	var n int
	fmt.Sscanf(e.sel.AttrOr("data-scroll-top", "0"), "%d", &n)
	return n
}

// SetScrollTop stores n in data-scroll-top.
func (e *Element) SetScrollTop(n int) {
	e.sel.SetAttr("data-scroll-top", fmt.Sprintf("%d", n))
}

func wrap(sel *goquery.Selection) []page.Element {
	out := make([]page.Element, 0, sel.Length())
	sel.Each(func(i int, s *goquery.Selection) {
		out = append(out, &Element{sel: s})
	})
	return out
}
