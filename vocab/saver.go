package vocab

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/feed"
	"github.com/termhub/termsync/ingest"
	"github.com/termhub/termsync/store"
)

// Saver turns decoded feed records into stored vocabulary. It resolves
// existing records by canonical URL through the per-batch cache, creating,
// updating, or leaving them untouched.
type Saver struct {
	vocab  *Store
	logger *zap.SugaredLogger
}

// NewSaver creates a saver over the vocabulary store.
func NewSaver(vocab *Store, logger *zap.SugaredLogger) *Saver {
	return &Saver{vocab: vocab, logger: logger}
}

// SaveConcept stores one decoded concept. A concept whose stored version URL
// matches the incoming one is already current and left untouched.
func (s *Saver) SaveConcept(ctx context.Context, cache *ingest.Cache, c *feed.Concept) (store.ItemState, error) {
	if c.URL == "" {
		return "", errors.Newf("concept %s has no URL", c.ID)
	}

	existing, err := s.conceptByURL(ctx, cache, c.URL)
	if err != nil {
		return "", err
	}
	if existing == nil {
		// the feed may republish a concept under a new URL; source+code is
		// the stable identity
		existing, err = s.conceptByCode(ctx, cache, c.Source, c.ID)
		if err != nil {
			return "", err
		}
	}

	if existing != nil && c.VersionURL != "" && existing.VersionURL == c.VersionURL {
		return store.ItemUpToDate, nil
	}

	record := &Concept{
		ExternalID:   c.ExternalID,
		Source:       c.Source,
		Code:         c.ID,
		Name:         c.PreferredName(),
		ConceptClass: c.ConceptClass,
		Datatype:     c.Datatype,
		Retired:      c.Retired,
		URL:          c.URL,
		VersionURL:   c.VersionURL,
		UpdatedAt:    updatedAt(c.UpdatedOn),
	}

	if existing == nil {
		record.UUID = newUUID(c.ExternalID)
		if err := s.vocab.InsertConcept(ctx, record); err != nil {
			return "", err
		}
		cache.Put(conceptKey(c.URL), record)
		return store.ItemCreated, nil
	}

	record.UUID = existing.UUID
	if err := s.vocab.UpdateConcept(ctx, record); err != nil {
		return "", err
	}
	cache.Put(conceptKey(c.URL), record)
	return store.ItemUpdated, nil
}

// SaveMapping stores one decoded mapping. The mapping's source concept must
// already be stored; an internal target concept must be stored too. A mapping
// not updated since its stored copy is left untouched.
func (s *Saver) SaveMapping(ctx context.Context, cache *ingest.Cache, m *feed.Mapping) (store.ItemState, error) {
	if m.FromConceptURL == "" {
		return "", errors.Newf("mapping %s has no source concept", m.URL)
	}

	from, err := s.conceptByURL(ctx, cache, m.FromConceptURL)
	if err != nil {
		return "", err
	}
	if from == nil {
		return "", errors.Newf("mapping %s refers to unknown concept %s", m.URL, m.FromConceptURL)
	}

	if m.ToConceptURL != "" {
		to, err := s.conceptByURL(ctx, cache, m.ToConceptURL)
		if err != nil {
			return "", err
		}
		if to == nil {
			return "", errors.Newf("mapping %s refers to unknown concept %s", m.URL, m.ToConceptURL)
		}
	} else if m.ToSourceName == "" || m.ToConceptCode == "" {
		return "", errors.Newf("mapping %s has neither a target concept nor a target code", m.URL)
	}

	var existing *Mapping
	if m.URL != "" {
		existing, err = s.mappingByURL(ctx, cache, m.URL)
		if err != nil {
			return "", err
		}
	}

	if existing != nil && !m.UpdatedOn.IsZero() && !existing.UpdatedAt.Before(m.UpdatedOn.Time) {
		return store.ItemUpToDate, nil
	}

	record := &Mapping{
		ExternalID:     m.ExternalID,
		MapType:        m.MapType,
		URL:            m.URL,
		FromConceptURL: m.FromConceptURL,
		FromSourceURL:  m.FromSourceURL,
		ToConceptURL:   m.ToConceptURL,
		ToSourceName:   m.ToSourceName,
		ToConceptCode:  m.ToConceptCode,
		ToConceptName:  m.ToConceptName,
		Retired:        m.Retired,
		UpdatedAt:      updatedAt(m.UpdatedOn),
	}

	if existing == nil {
		record.UUID = newUUID(m.ExternalID)
		if err := s.vocab.InsertMapping(ctx, record); err != nil {
			return "", err
		}
		if m.URL != "" {
			cache.Put(mappingKey(m.URL), record)
		}
		return store.ItemCreated, nil
	}

	record.UUID = existing.UUID
	if err := s.vocab.UpdateMapping(ctx, record); err != nil {
		return "", err
	}
	cache.Put(mappingKey(m.URL), record)
	return store.ItemUpdated, nil
}

func (s *Saver) conceptByURL(ctx context.Context, cache *ingest.Cache, url string) (*Concept, error) {
	return ingest.Lookup(cache, conceptKey(url), func() (*Concept, error) {
		return s.vocab.ConceptByURL(ctx, url)
	})
}

func (s *Saver) conceptByCode(ctx context.Context, cache *ingest.Cache, source, code string) (*Concept, error) {
	return ingest.Lookup(cache, "concept-code:"+source+"|"+code, func() (*Concept, error) {
		return s.vocab.ConceptByCode(ctx, source, code)
	})
}

func (s *Saver) mappingByURL(ctx context.Context, cache *ingest.Cache, url string) (*Mapping, error) {
	return ingest.Lookup(cache, mappingKey(url), func() (*Mapping, error) {
		return s.vocab.MappingByURL(ctx, url)
	})
}

func conceptKey(url string) string { return "concept:" + url }
func mappingKey(url string) string { return "mapping:" + url }

// newUUID keeps the feed's external ID as the record identity when it is a
// valid UUID, minting one otherwise.
func newUUID(externalID string) string {
	if _, err := uuid.Parse(externalID); err == nil {
		return externalID
	}
	return uuid.NewString()
}

func updatedAt(t feed.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t.Time
}
