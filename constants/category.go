package constants

import "strings"

// Category is the redaction category of a span.
type Category string

const (
	Person     Category = "PERSON"
	Location   Category = "LOCATION"
	Org        Category = "ORG"
	ClientName Category = "CLIENT_NAME"
	ClientLogo Category = "CLIENT_LOGO"
	OtherPII   Category = "OTHER_PII"
)

var allCategories = []Category{
	Person,
	Location,
	Org,
	ClientName,
	ClientLogo,
	OtherPII,
}

var placeholders = map[Category]string{
	Person:     "<PERSON_REDACTED>",
	Location:   "<LOCATION_REDACTED>",
	Org:        "<ORG_REDACTED>",
	ClientName: "<CLIENT_NAME_REDACTED>",
	ClientLogo: "<CLIENT_LOGO_REDACTED>",
	OtherPII:   "<PII_REDACTED>",
}

// Categories returns every category in a stable order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// Placeholder is the fixed token substituted for a span of category c.
// Unknown categories fall back to the OTHER_PII token.
func Placeholder(c Category) string {
	if p, ok := placeholders[c]; ok {
		return p
	}
	return placeholders[OtherPII]
}

// Specificity ranks categories for overlap reconciliation. Higher wins.
// CLIENT_LOGO outranks CLIENT_NAME where both land on the same image-embedded text.
func Specificity(c Category) int {
	switch c {
	case ClientLogo:
		return 3
	case ClientName:
		return 2
	default:
		return 1
	}
}

// Canonicalize maps detector labels onto a Category.
func Canonicalize(label string) (Category, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	if normalized == "" {
		return OtherPII, false
	}

	synonyms := map[string]Category{
		"PER":           Person,
		"PERSON":        Person,
		"NRP":           Person,
		"GPE":           Location,
		"LOC":           Location,
		"LOCATION":      Location,
		"ORG":           Org,
		"ORGANIZATION":  Org,
		"EMAIL_ADDRESS": OtherPII,
		"PHONE_NUMBER":  OtherPII,
		"CREDIT_CARD":   OtherPII,
		"US_SSN":        OtherPII,
		"IBAN_CODE":     OtherPII,
	}
	if c, ok := synonyms[normalized]; ok {
		return c, true
	}
	for _, c := range allCategories {
		if normalized == string(c) {
			return c, true
		}
	}
	return OtherPII, false
}
