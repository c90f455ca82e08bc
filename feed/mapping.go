package feed

// Map types with special handling during import.
const (
	MapTypeQuestionAnswer = "Q-AND-A"
	MapTypeSameAs         = "SAME-AS"
)

// Mapping is the decoded, transient form of one element of the feed's
// "mappings" array.
type Mapping struct {
	ExternalID     string `json:"external_id"`
	Retired        bool   `json:"retired"`
	MapType        string `json:"map_type"`
	URL            string `json:"url"`
	FromConceptURL string `json:"from_concept_url"`
	FromSourceURL  string `json:"from_source_url"`
	ToConceptURL   string `json:"to_concept_url"`
	ToSourceName   string `json:"to_source_name"`
	ToConceptCode  string `json:"to_concept_code"`
	ToConceptName  string `json:"to_concept_name"`
	UpdatedOn      Time   `json:"updated_on"`
}

// ApplyBaseURL prefixes the mapping's relative reference URLs with the
// subscription's base URL.
func (m *Mapping) ApplyBaseURL(base string) {
	m.URL = PrependBaseURL(base, m.URL)
	m.FromConceptURL = PrependBaseURL(base, m.FromConceptURL)
	m.FromSourceURL = PrependBaseURL(base, m.FromSourceURL)
	m.ToConceptURL = PrependBaseURL(base, m.ToConceptURL)
}
