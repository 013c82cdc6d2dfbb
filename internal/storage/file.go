package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"adscroll/internal/listing"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteJSON writes rs as a two-space indented object keyed by listing
// identifier, in discovery order. The file is created or truncated.
func WriteJSON(path string, rs *listing.ResultSet) error {
	return writeFile(path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rs); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		return nil
	})
}

// ReadJSON loads a file written by WriteJSON.
func ReadJSON(path string) (*listing.ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rs := listing.NewResultSet()
	if err := json.Unmarshal(data, rs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return rs, nil
}

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = append([]string{"id"}, listing.FieldNames...)

// WriteCSV writes one row per listing in discovery order.
func WriteCSV(path string, rs *listing.ResultSet) error {
	return writeFile(path, func(bw *bufio.Writer) error {
		w := csv.NewWriter(bw)
		if err := w.Write(CSVHeader); err != nil {
			return err
		}
		for _, id := range rs.IDs() {
			rec, _ := rs.Get(id)
			if err := w.Write(append([]string{id}, rec.Fields()...)); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

// WriteMarkdown renders rs as a Markdown table.
func WriteMarkdown(path string, rs *listing.ResultSet) error {
	return writeFile(path, func(w *bufio.Writer) error {
		t := table.NewWriter()
		t.AppendHeader(rowOf(CSVHeader))
		rs.Each(func(id listing.ID, rec listing.Record) {
			t.AppendRow(rowOf(append([]string{id}, rec.Fields()...)))
		})
		_, err := w.WriteString(t.RenderMarkdown() + "\n")
		return err
	})
}

func rowOf(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func writeFile(path string, fn func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
