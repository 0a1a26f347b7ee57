package report

import (
	"github.com/joseph-ayodele/doc-cleanser/constants"
)

// Sensitivity grades a document by what the redaction engine had to remove.
// Client identity weighs most, then direct identifiers, then names and places.
func Sensitivity(counts map[constants.Category]int) constants.Sensitivity {
	client := counts[constants.ClientName] + counts[constants.ClientLogo]
	pii := counts[constants.OtherPII]
	named := counts[constants.Person] + counts[constants.Location] + counts[constants.Org]

	score := 3*client + 2*pii + named
	switch {
	case score == 0:
		return constants.SensitivityLow
	case pii >= 10 || score > 30:
		return constants.SensitivityCritical
	case client > 0 || pii > 0 || score > 10:
		return constants.SensitivityHigh
	default:
		return constants.SensitivityMedium
	}
}
