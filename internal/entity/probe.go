package entity

// PageProbe summarises what a booking page looked like when first loaded.
type PageProbe struct {
	URL       string
	Title     string
	NotFound  bool
	HasWidget bool
}
