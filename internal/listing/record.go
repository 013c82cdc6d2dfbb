package listing

// NotAvailable stands in for any field the card did not render.
const NotAvailable = "N/A"

// ID is the per-card token the feed attaches as data-index.
type ID = string

// Record is one extracted ad.
type Record struct {
	Title   string `json:"title"`
	Deposit string `json:"deposit"`
	Rent    string `json:"rent"`
	Agency  string `json:"agency"`
	Link    string `json:"link"`
}

// Empty returns a record with every field set to NotAvailable.
func Empty() Record {
	return Record{
		Title:   NotAvailable,
		Deposit: NotAvailable,
		Rent:    NotAvailable,
		Agency:  NotAvailable,
		Link:    NotAvailable,
	}
}

// Fields returns the values in column order: title, deposit, rent, agency, link.
func (r Record) Fields() []string {
	return []string{r.Title, r.Deposit, r.Rent, r.Agency, r.Link}
}

// FieldNames are the JSON keys of Record in column order.
var FieldNames = []string{"title", "deposit", "rent", "agency", "link"}
