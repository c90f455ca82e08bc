// Package vocab persists the imported terminology: concepts and the mappings
// between them.
package vocab

import (
	"context"
	"database/sql"
	"time"

	"github.com/termhub/termsync/errors"
)

// Concept is one stored terminology concept.
type Concept struct {
	UUID         string
	ExternalID   string
	Source       string
	Code         string
	Name         string
	ConceptClass string
	Datatype     string
	Retired      bool
	URL          string
	VersionURL   string
	UpdatedAt    time.Time
}

// Mapping is one stored relation between a concept and another concept or an
// external code.
type Mapping struct {
	UUID           string
	ExternalID     string
	MapType        string
	URL            string
	FromConceptURL string
	FromSourceURL  string
	ToConceptURL   string
	ToSourceName   string
	ToConceptCode  string
	ToConceptName  string
	Retired        bool
	UpdatedAt      time.Time
}

// Store reads and writes the vocabulary tables.
type Store struct {
	db *sql.DB
}

// NewStore creates a vocabulary store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const conceptColumns = `uuid, external_id, source, code, name, concept_class, datatype, retired, url, version_url, updated_at`

// ConceptByURL retrieves a concept by its canonical URL, nil when absent.
func (s *Store) ConceptByURL(ctx context.Context, url string) (*Concept, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conceptColumns+` FROM concepts WHERE url = ?`, url)
	return scanConcept(row)
}

// ConceptByCode retrieves a concept by source and code, nil when absent.
func (s *Store) ConceptByCode(ctx context.Context, source, code string) (*Concept, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conceptColumns+` FROM concepts WHERE source = ? AND code = ?`, source, code)
	return scanConcept(row)
}

// InsertConcept stores a new concept.
func (s *Store) InsertConcept(ctx context.Context, c *Concept) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO concepts (`+conceptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UUID, c.ExternalID, c.Source, c.Code, c.Name, c.ConceptClass, c.Datatype,
		c.Retired, c.URL, c.VersionURL, c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert concept %s", c.URL)
	}
	return nil
}

// UpdateConcept replaces a stored concept's attributes, keyed by UUID.
func (s *Store) UpdateConcept(ctx context.Context, c *Concept) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE concepts SET external_id = ?, source = ?, code = ?, name = ?, concept_class = ?,
		   datatype = ?, retired = ?, url = ?, version_url = ?, updated_at = ?
		 WHERE uuid = ?`,
		c.ExternalID, c.Source, c.Code, c.Name, c.ConceptClass, c.Datatype,
		c.Retired, c.URL, c.VersionURL, c.UpdatedAt, c.UUID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update concept %s", c.URL)
	}
	return nil
}

// CountConcepts returns the number of stored concepts.
func (s *Store) CountConcepts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concepts`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count concepts")
	}
	return n, nil
}

const mappingColumns = `uuid, external_id, map_type, url, from_concept_url, from_source_url, to_concept_url, to_source_name, to_concept_code, to_concept_name, retired, updated_at`

// MappingByURL retrieves a mapping by its canonical URL, nil when absent.
func (s *Store) MappingByURL(ctx context.Context, url string) (*Mapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM concept_mappings WHERE url = ?`, url)
	return scanMapping(row)
}

// InsertMapping stores a new mapping.
func (s *Store) InsertMapping(ctx context.Context, m *Mapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO concept_mappings (`+mappingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UUID, m.ExternalID, m.MapType, m.URL, m.FromConceptURL, m.FromSourceURL,
		m.ToConceptURL, m.ToSourceName, m.ToConceptCode, m.ToConceptName, m.Retired, m.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert mapping %s", m.URL)
	}
	return nil
}

// UpdateMapping replaces a stored mapping's attributes, keyed by UUID.
func (s *Store) UpdateMapping(ctx context.Context, m *Mapping) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE concept_mappings SET external_id = ?, map_type = ?, url = ?, from_concept_url = ?,
		   from_source_url = ?, to_concept_url = ?, to_source_name = ?, to_concept_code = ?,
		   to_concept_name = ?, retired = ?, updated_at = ?
		 WHERE uuid = ?`,
		m.ExternalID, m.MapType, m.URL, m.FromConceptURL, m.FromSourceURL,
		m.ToConceptURL, m.ToSourceName, m.ToConceptCode, m.ToConceptName,
		m.Retired, m.UpdatedAt, m.UUID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update mapping %s", m.URL)
	}
	return nil
}

// CountMappings returns the number of stored mappings.
func (s *Store) CountMappings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concept_mappings`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count mappings")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConcept(row rowScanner) (*Concept, error) {
	var c Concept
	var externalID, name, class, datatype, versionURL sql.NullString
	err := row.Scan(&c.UUID, &externalID, &c.Source, &c.Code, &name, &class, &datatype,
		&c.Retired, &c.URL, &versionURL, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan concept")
	}
	c.ExternalID = externalID.String
	c.Name = name.String
	c.ConceptClass = class.String
	c.Datatype = datatype.String
	c.VersionURL = versionURL.String
	return &c, nil
}

func scanMapping(row rowScanner) (*Mapping, error) {
	var m Mapping
	var externalID, url, fromConcept, fromSource, toConcept, toSource, toCode, toName sql.NullString
	err := row.Scan(&m.UUID, &externalID, &m.MapType, &url, &fromConcept, &fromSource,
		&toConcept, &toSource, &toCode, &toName, &m.Retired, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan mapping")
	}
	m.ExternalID = externalID.String
	m.URL = url.String
	m.FromConceptURL = fromConcept.String
	m.FromSourceURL = fromSource.String
	m.ToConceptURL = toConcept.String
	m.ToSourceName = toSource.String
	m.ToConceptCode = toCode.String
	m.ToConceptName = toName.String
	return &m, nil
}
