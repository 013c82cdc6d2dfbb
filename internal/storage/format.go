// Package storage persists harvested listings.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"adscroll/internal/listing"
)

// DefaultPath is where results go when no output is given.
const DefaultPath = "output.json"

// Format names an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatSQLite   Format = "sqlite"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatSQLite:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid output format: %s", s)
	}
}

// FormatFromPath infers the format from the file extension, or "" when unknown.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	case ".md", ".markdown":
		return FormatMarkdown
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return ""
	}
}

// Write stores rs at path in the given format. source tags rows for the
// database formats and is ignored by the file formats.
func Write(path string, format Format, source string, rs *listing.ResultSet) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(path, rs)
	case FormatCSV:
		return WriteCSV(path, rs)
	case FormatMarkdown:
		return WriteMarkdown(path, rs)
	case FormatSQLite:
		return saveSQLiteFile(path, source, rs)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
