package catalog

// Query is one entry in the fixed evaluation catalog. Queries are loaded once
// and never mutated.
type Query struct {
	ID            int    `json:"id"`
	Text          string `json:"query"`
	Category      string `json:"category"`
	Quality       string `json:"quality"`
	IntentClarity string `json:"intent_clarity"`
}

// Fixed enumerations for query metadata.
var (
	Categories = []string{
		"informational",
		"navigational",
		"transactional",
		"local",
		"conversational",
	}

	Qualities = []string{
		"well-formed",
		"ambiguous",
		"poorly-formed",
	}

	IntentClarities = []string{
		"high",
		"medium",
		"low",
	}
)

func isOneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
