// Package safety decides whether uploaded media may be published.
package safety

import "fmt"

// Likelihood is a SafeSearch confidence tier, ordered from least to most
// severe.
type Likelihood int

const (
	Unknown Likelihood = iota
	VeryUnlikely
	Unlikely
	Possible
	Likely
	VeryLikely
)

var likelihoodNames = [...]string{"UNKNOWN", "VERY_UNLIKELY", "UNLIKELY", "POSSIBLE", "LIKELY", "VERY_LIKELY"}

func (l Likelihood) String() string {
	if l < Unknown || l > VeryLikely {
		return fmt.Sprintf("Likelihood(%d)", int(l))
	}
	return likelihoodNames[l]
}

// ParseLikelihood maps the classifier's wire value to a tier. An empty value
// means the category was not scored and reads as UNKNOWN.
func ParseLikelihood(s string) (Likelihood, error) {
	if s == "" {
		return Unknown, nil
	}
	for i, name := range likelihoodNames {
		if name == s {
			return Likelihood(i), nil
		}
	}
	return Unknown, fmt.Errorf("unrecognized likelihood %q", s)
}

// Annotation is the classifier's score on the three gated categories.
type Annotation struct {
	Adult    Likelihood
	Violence Likelihood
	Racy     Likelihood
}

// Threshold is the lowest tier that marks content unsafe.
const Threshold = Likely

// Unsafe reports whether any gated category reaches the threshold.
func (a Annotation) Unsafe() bool {
	return a.Adult >= Threshold || a.Violence >= Threshold || a.Racy >= Threshold
}
