package detector

import (
	"strings"

	"github.com/formwatch/formwatch/internal/watch"
)

// Classifier assigns a severity to a detected change. The default keyword
// scan is a coarse heuristic; callers may plug in something smarter.
type Classifier interface {
	Classify(description string, context string) watch.Severity
}

// KeywordClassifier grades severity from trigger words in the change
// description and surrounding context. An explicit signal is never
// downgraded: "critical" wins over "major" wins over the default.
type KeywordClassifier struct{}

// NewKeywordClassifier constructs the default classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify scans for trigger keywords and defaults to medium.
func (KeywordClassifier) Classify(description string, context string) watch.Severity {
	text := strings.ToLower(description + " " + context)
	if strings.Contains(text, "critical") {
		return watch.SeverityCritical
	}
	if strings.Contains(text, "major") || strings.Contains(text, "significant") {
		return watch.SeverityHigh
	}
	return watch.SeverityMedium
}
