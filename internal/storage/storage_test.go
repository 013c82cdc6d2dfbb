package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"adscroll/internal/listing"

	"github.com/stretchr/testify/require"
)

const feed = "https://divar.ir/s/babolsar/rent-apartment"

func sample() *listing.ResultSet {
	rs := listing.NewResultSet()
	rs.Add("7", listing.Record{
		Title:   "آپارتمان ۸۵ متری",
		Deposit: "ودیعه: ۲۰۰٬۰۰۰٬۰۰۰ تومان",
		Rent:    "اجارهٔ ماهانه: ۵٬۰۰۰٬۰۰۰ تومان",
		Agency:  "مشاور املاک <ساحل> & co",
		Link:    "https://divar.ir/v/abc",
	})
	rec := listing.Empty()
	rec.Title = "ویلا"
	rs.Add("3", rec)
	return rs
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, WriteJSON(path, sample()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	require.True(t, strings.HasPrefix(text, "{\n  \"7\": {\n    \"title\": \"آپارتمان ۸۵ متری\""), text)
	require.Contains(t, text, `"agency": "مشاور املاک <ساحل> & co"`)
	require.Less(t, strings.Index(text, `"7"`), strings.Index(text, `"3"`))
	require.Contains(t, text, `"deposit": "N/A"`)

	got, err := ReadJSON(path)
	require.NoError(t, err)
	require.Equal(t, []listing.ID{"7", "3"}, got.IDs())
	want, _ := sample().Get("7")
	rec, _ := got.Get("7")
	require.Equal(t, want, rec)
}

func TestWriteJSONTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, WriteJSON(path, sample()))

	small := listing.NewResultSet()
	small.Add("1", listing.Empty())
	require.NoError(t, WriteJSON(path, small))

	got, err := ReadJSON(path)
	require.NoError(t, err)
	require.Equal(t, []listing.ID{"1"}, got.IDs())
}

func TestWriteJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, WriteJSON(path, listing.NewResultSet()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{}\n", string(data))
}

func TestWriteJSONUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "output.json")
	require.Error(t, WriteJSON(path, sample()))
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ads.csv")
	require.NoError(t, WriteCSV(path, sample()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"id", "title", "deposit", "rent", "agency", "link"}, rows[0])
	require.Equal(t, "7", rows[1][0])
	require.Equal(t, []string{"3", "ویلا", "N/A", "N/A", "N/A", "N/A"}, rows[2])
}

func TestWriteMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ads.md")
	require.NoError(t, WriteMarkdown(path, sample()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, strings.ToLower(lines[0]), "| id | title | deposit | rent | agency | link |")
	require.Contains(t, lines[2], "آپارتمان ۸۵ متری")
	require.Contains(t, lines[3], "ویلا")
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"output.json":  FormatJSON,
		"ads.CSV":      FormatCSV,
		"ads.md":       FormatMarkdown,
		"ads.markdown": FormatMarkdown,
		"ads.db":       FormatSQLite,
		"ads.sqlite":   FormatSQLite,
		"ads.txt":      "",
		"ads":          "",
	}
	for path, want := range cases {
		require.Equal(t, want, FormatFromPath(path), path)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("MD")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestWriteDispatch(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "ads.csv")
	require.NoError(t, Write(csvPath, FormatCSV, feed, sample()))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "id,title,"))

	dbPath := filepath.Join(dir, "ads.db")
	require.NoError(t, Write(dbPath, FormatSQLite, feed, sample()))
	store, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Load(context.Background(), feed)
	require.NoError(t, err)
	require.Equal(t, []listing.ID{"7", "3"}, got.IDs())

	require.Error(t, Write(filepath.Join(dir, "x"), Format("xml"), feed, sample()))
}

func testStore(t *testing.T, store interface {
	Save(ctx context.Context, source string, rs *listing.ResultSet) (int, error)
	Load(ctx context.Context, source string) (*listing.ResultSet, error)
	Sources(ctx context.Context) ([]string, error)
}, source string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := store.Save(ctx, source, listing.NewResultSet())
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = store.Save(ctx, source, sample())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := store.Load(ctx, source)
	require.NoError(t, err)
	require.Equal(t, []listing.ID{"7", "3"}, got.IDs())
	want, _ := sample().Get("7")
	rec, _ := got.Get("7")
	require.Equal(t, want, rec)

	// saving again updates in place
	again := listing.NewResultSet()
	updated := listing.Empty()
	updated.Title = "ویلا ۲"
	again.Add("3", updated)
	again.Add("9", listing.Empty())
	_, err = store.Save(ctx, source, again)
	require.NoError(t, err)

	got, err = store.Load(ctx, source)
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	rec, _ = got.Get("3")
	require.Equal(t, "ویلا ۲", rec.Title)

	other, err := store.Load(ctx, source+"-other")
	require.NoError(t, err)
	require.Zero(t, other.Len())

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	require.Contains(t, sources, source)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store, feed)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ADSCROLL_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("ADSCROLL_TEST_POSTGRES not set")
	}

	store, err := OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store, feed+"#"+t.Name()+time.Now().Format(time.RFC3339Nano))
}
