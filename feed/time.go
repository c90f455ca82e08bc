package feed

import (
	"strings"
	"time"

	"github.com/termhub/termsync/errors"
)

// Layout is the feed's date-time format: ISO-like, local, no timezone offset.
const Layout = "2006-01-02T15:04:05"

// Time wraps time.Time with the feed's wire format.
type Time struct {
	time.Time
}

// UnmarshalJSON parses the feed layout, falling back to RFC3339 for feeds that
// include an offset.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		if rfc, rfcErr := time.Parse(time.RFC3339, s); rfcErr == nil {
			t.Time = rfc
			return nil
		}
		return errors.Wrapf(err, "invalid feed timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes the feed layout.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(Layout) + `"`), nil
}
