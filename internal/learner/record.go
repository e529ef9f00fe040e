package learner

import (
	"encoding/json"
	"fmt"

	"github.com/p-n-ai/pim/internal/shared"
)

// SchemaVersion is written into every persisted record. Records without a
// version predate versioning and are read as version 1.
const SchemaVersion = 1

// Record is the persisted form of a User. Every field is listed explicitly;
// nothing is derived from in-memory field names.
type Record struct {
	SchemaVersion int                `json:"schema_version"`
	Username      string             `json:"username"`
	FullName      string             `json:"full_name"`
	Age           int                `json:"age"`
	Gender        Gender             `json:"gender,omitempty"`
	City          string             `json:"city,omitempty"`
	CourseID      *string            `json:"course_id"`
	Progress      map[string]Cursor  `json:"progress"`
	Grades        map[string]float64 `json:"grades"`
}

// ToRecord converts a user to its persisted form.
func (u *User) ToRecord() Record {
	c := u.Clone()
	r := Record{
		SchemaVersion: SchemaVersion,
		Username:      c.Username,
		FullName:      c.FullName,
		Age:           c.Age,
		Gender:        c.Gender,
		City:          c.City,
		Progress:      c.Progress,
		Grades:        c.Grades,
	}
	if c.CourseID != "" {
		r.CourseID = &c.CourseID
	}
	return r
}

// FromRecord validates a persisted record and builds the user.
func FromRecord(r Record) (*User, error) {
	switch r.SchemaVersion {
	case 0, SchemaVersion:
	default:
		return nil, fmt.Errorf("unsupported schema version %d: %w", r.SchemaVersion, shared.ErrDataCorruption)
	}
	if r.Username == "" {
		return nil, fmt.Errorf("record without username: %w", shared.ErrDataCorruption)
	}
	if !r.Gender.Valid() {
		return nil, fmt.Errorf("user %q: unknown gender %q: %w", r.Username, r.Gender, shared.ErrDataCorruption)
	}
	for subject, c := range r.Progress {
		if c.Kind == NotStarted {
			return nil, fmt.Errorf("user %q: empty cursor for subject %q: %w", r.Username, subject, shared.ErrDataCorruption)
		}
	}
	for subject, g := range r.Grades {
		if g < 0 || g > 1 {
			return nil, fmt.Errorf("user %q: grade %v for subject %q out of range: %w", r.Username, g, subject, shared.ErrDataCorruption)
		}
	}

	u := &User{
		Username: NormalizeUsername(r.Username),
		FullName: r.FullName,
		Age:      r.Age,
		Gender:   r.Gender,
		City:     r.City,
		Progress: make(map[string]Cursor, len(r.Progress)),
		Grades:   make(map[string]float64, len(r.Grades)),
	}
	if r.CourseID != nil {
		u.CourseID = *r.CourseID
	}
	for k, v := range r.Progress {
		u.Progress[k] = v
	}
	for k, v := range r.Grades {
		u.Grades[k] = v
	}
	return u, nil
}

// Encode serializes a user as JSON.
func Encode(u *User) ([]byte, error) {
	data, err := json.Marshal(u.ToRecord())
	if err != nil {
		return nil, fmt.Errorf("encode user %q: %w", u.Username, err)
	}
	return data, nil
}

// Decode parses a JSON record. Any structural problem is reported as
// shared.ErrDataCorruption.
func Decode(data []byte) (*User, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDataCorruption, err)
	}
	return FromRecord(r)
}
