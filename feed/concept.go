package feed

import (
	"net/url"
	"strings"

	"github.com/termhub/termsync/errors"
)

// Name is one localized name of a concept.
type Name struct {
	Name            string `json:"name"`
	ExternalID      string `json:"external_id"`
	Type            string `json:"name_type"`
	Locale          string `json:"locale"`
	LocalePreferred bool   `json:"locale_preferred"`
}

// Description is one localized description of a concept.
type Description struct {
	Description     string `json:"description"`
	ExternalID      string `json:"external_id"`
	Type            string `json:"description_type"`
	Locale          string `json:"locale"`
	LocalePreferred bool   `json:"locale_preferred"`
}

// Concept is the decoded, transient form of one element of the feed's
// "concepts" array. It is consumed to produce or update a persisted concept,
// never persisted itself.
type Concept struct {
	ID           string         `json:"id"`
	ExternalID   string         `json:"external_id"`
	ConceptClass string         `json:"concept_class"`
	Datatype     string         `json:"datatype"`
	Retired      bool           `json:"retired"`
	Source       string         `json:"source"`
	URL          string         `json:"url"`
	VersionURL   string         `json:"version_url"`
	Names        []Name         `json:"names"`
	Descriptions []Description  `json:"descriptions"`
	Extras       map[string]any `json:"extras"`
	CreatedOn    Time           `json:"created_on"`
	UpdatedOn    Time           `json:"updated_on"`
}

// ApplyBaseURL prefixes the concept's relative reference URLs with the
// subscription's base URL.
func (c *Concept) ApplyBaseURL(base string) {
	c.VersionURL = PrependBaseURL(base, c.VersionURL)
	c.URL = PrependBaseURL(base, c.URL)
}

// PreferredName returns the locale-preferred name, falling back to the first
// name present.
func (c *Concept) PreferredName() string {
	for _, n := range c.Names {
		if n.LocalePreferred {
			return n.Name
		}
	}
	if len(c.Names) > 0 {
		return c.Names[0].Name
	}
	return ""
}

// PrependBaseURL prefixes a relative reference with the base URL. A reference
// already carrying a scheme is returned unchanged, as are empty references and
// an empty base.
func PrependBaseURL(base, ref string) string {
	if base == "" || ref == "" {
		return ref
	}
	if strings.Contains(ref, "://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return base + ref
}

// BaseURL derives scheme://host[:port] from a subscription URL. An empty input
// yields an empty base (prefixing becomes a no-op).
func BaseURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "%s is not a valid subscription URL", rawURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Newf("%s is not a valid subscription URL", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
