package listing

// Selectors locates the feed pieces on the page. Class names on the source
// site are build-hashed, so every value is overridable from the config file.
type Selectors struct {
	Container         string `json:"container"`
	Card              string `json:"card"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	BottomDescription string `json:"bottom_description"`
	Action            string `json:"action"`
	LoadMore          string `json:"load_more"`
	IDAttribute       string `json:"id_attribute"`
}

// DefaultSelectors matches divar.ir post lists.
func DefaultSelectors() Selectors {
	return Selectors{
		Container:         ".content-dd848",
		Card:              ".post-list__items-container-e44b2",
		Title:             ".unsafe-kt-post-card__title",
		Description:       ".unsafe-kt-post-card__description",
		BottomDescription: ".unsafe-kt-post-card__bottom-description",
		Action:            ".unsafe-kt-post-card__action",
		LoadMore:          ".post-list__load-more-btn-be092",
		IDAttribute:       "data-index",
	}
}
