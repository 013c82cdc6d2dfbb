// Package diagnose saves what the browser was showing when a run could not start.
package diagnose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"adscroll/internal/page"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// Snapshot converts the current document of p to Markdown and writes it to
// dir/snapshot-<unix seconds>.md. It returns the written path.
func Snapshot(p page.Page, dir, url string, at time.Time) (string, error) {
	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	converter.Remove("script", "style", "noscript", "svg")
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Snapshot of %s\n\n", url)
	fmt.Fprintf(&sb, "Taken %s\n\n---\n\n", at.UTC().Format(time.RFC3339))
	sb.WriteString(markdown)
	sb.WriteString("\n")

	path := filepath.Join(dir, fmt.Sprintf("snapshot-%d.md", at.Unix()))
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}
