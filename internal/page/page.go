// Package page describes the browser capability the harvester drives.
//
// A Page is a live document that can be navigated, queried and scripted.
// Queries return fresh, ordered slices of opaque Element handles; nothing
// here models the DOM as a tree.
package page

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Element.Query when no child matches.
var ErrNotFound = errors.New("element not found")

// Page is a single, exclusively owned browser document.
type Page interface {
	// Navigate loads url into the page.
	Navigate(url string) error
	// WaitPresent blocks until selector matches or timeout elapses.
	WaitPresent(selector string, timeout time.Duration) (Element, error)
	// QueryAll returns every element currently matching selector, in document order.
	QueryAll(selector string) ([]Element, error)
	// Exec runs a JS function expression. Element arguments are passed as DOM nodes.
	Exec(script string, args ...any) error
	// HTML returns the serialized document.
	HTML() (string, error)
}

// Element is a handle to one node of a Page.
type Element interface {
	Query(selector string) (Element, error)
	QueryAll(selector string) ([]Element, error)
	Text() (string, error)
	// Attribute reports the value of name and whether it is set.
	Attribute(name string) (string, bool, error)
	Visible() (bool, error)
}
