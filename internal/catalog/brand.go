package catalog

import "strings"

// Known brand identifiers used for marker coloring and filtering.
const (
	BrandSevenEleven = "7-11"
	BrandFamilyMart  = "familymart"
	BrandHiLife      = "hilife"
	BrandOKMart      = "okmart"
)

// NormalizeBrand maps free-form user input to a canonical brand identifier.
// Unknown input is kept as a lowercase keyword; empty input means no filter.
func NormalizeBrand(input string) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	compact := strings.NewReplacer(" ", "", "-", "").Replace(lower)

	switch {
	case (strings.Contains(compact, "7") && (strings.Contains(compact, "11") || strings.Contains(compact, "eleven"))) ||
		strings.Contains(compact, "seven"):
		return BrandSevenEleven
	case strings.Contains(compact, "family") || strings.Contains(raw, "全家"):
		return BrandFamilyMart
	case strings.Contains(compact, "hilife") || strings.Contains(raw, "萊爾富"):
		return BrandHiLife
	case strings.Contains(compact, "okmart") || compact == "ok" || strings.Contains(raw, "ok超商"):
		return BrandOKMart
	default:
		return compact
	}
}

// brandMatches reports whether a store's brand satisfies the (already
// normalized) filter. An empty filter matches everything.
func brandMatches(storeBrand, filter string) bool {
	if filter == "" {
		return true
	}
	return NormalizeBrand(storeBrand) == filter
}
