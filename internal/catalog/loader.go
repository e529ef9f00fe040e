// Package catalog loads the read-only course catalog: courses, subjects,
// lessons and assessments.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pim/internal/shared"
)

// DefaultMaxGrade is used for subjects that do not declare max_grade.
const DefaultMaxGrade = 10.0

//go:embed course.schema.json
var courseSchemaJSON string

var courseSchema = mustCompileSchema(courseSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("catalog: compiling course schema: %v", err))
	}
	return s
}

// Catalog is the immutable set of courses available to learners.
type Catalog struct {
	courses map[string]*Course
}

// Load reads course definitions from path. A file holds a mapping of course
// id to course; a directory holds one course per .json, .yaml or .yml file.
// A missing path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	c := &Catalog{courses: make(map[string]*Course)}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("catalog source not found, using empty catalog", "path", path)
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}

	if info.IsDir() {
		err = c.loadDir(path)
	} else {
		err = c.loadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "path", path, "courses", len(c.courses))
	return c, nil
}

// New builds a catalog from already parsed courses.
func New(courses ...*Course) *Catalog {
	c := &Catalog{courses: make(map[string]*Course, len(courses))}
	for _, course := range courses {
		c.courses[course.ID] = course
	}
	return c
}

// Course returns the course with the given id.
func (c *Catalog) Course(id string) (*Course, error) {
	course, ok := c.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %q: %w", id, shared.ErrNotFound)
	}
	return course, nil
}

// Courses returns all courses sorted by name.
func (c *Catalog) Courses() []*Course {
	courses := make([]*Course, 0, len(c.courses))
	for _, course := range c.courses {
		courses = append(courses, course)
	}
	sort.Slice(courses, func(i, j int) bool {
		if courses[i].Name != courses[j].Name {
			return courses[i].Name < courses[j].Name
		}
		return courses[i].ID < courses[j].ID
	})
	return courses
}

func (c *Catalog) loadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isCourseFile(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		course, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := c.courses[course.ID]; dup {
			return fmt.Errorf("%s: course %q defined twice: %w", path, course.ID, shared.ErrDataCorruption)
		}
		c.courses[course.ID] = course
		return nil
	})
}

func (c *Catalog) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s: %w: %v", path, shared.ErrDataCorruption, err)
	}
	for id, doc := range raw {
		if err := validateDocument(doc); err != nil {
			return fmt.Errorf("%s: course %q: %w", path, id, err)
		}
	}

	var docs map[string]courseDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("%s: %w: %v", path, shared.ErrDataCorruption, err)
	}
	for id, doc := range docs {
		if doc.ID != id {
			return fmt.Errorf("%s: key %q holds course %q: %w", path, id, doc.ID, shared.ErrDataCorruption)
		}
		course, err := doc.build()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		c.courses[id] = course
	}
	return nil
}

// Parse decodes and validates a single course document (JSON or YAML).
func Parse(data []byte) (*Course, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDataCorruption, err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var doc courseDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDataCorruption, err)
	}
	return doc.build()
}

func validateDocument(doc any) error {
	res, err := courseSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDataCorruption, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", shared.ErrDataCorruption, strings.Join(msgs, "; "))
}

func isCourseFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

type courseDoc struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Subjects []subjectDoc `yaml:"subjects"`
}

type subjectDoc struct {
	ID         string      `yaml:"id"`
	Name       string      `yaml:"name"`
	MaxGrade   *float64    `yaml:"max_grade"`
	Lessons    []lessonDoc `yaml:"lessons"`
	Assessment Assessment  `yaml:"assessment"`
}

type lessonDoc struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Content  string `yaml:"content"`
	Position *int   `yaml:"position"`
}

func (d courseDoc) build() (*Course, error) {
	course := &Course{
		ID:       d.ID,
		Name:     d.Name,
		Subjects: make([]*Subject, 0, len(d.Subjects)),
	}

	seen := make(map[string]bool, len(d.Subjects))
	for _, sd := range d.Subjects {
		if seen[sd.ID] {
			return nil, fmt.Errorf("course %q: duplicate subject %q: %w", d.ID, sd.ID, shared.ErrDataCorruption)
		}
		seen[sd.ID] = true

		subject, err := sd.build()
		if err != nil {
			return nil, fmt.Errorf("course %q: %w", d.ID, err)
		}
		course.Subjects = append(course.Subjects, subject)
	}

	sort.SliceStable(course.Subjects, func(i, j int) bool {
		return course.Subjects[i].Name < course.Subjects[j].Name
	})
	return course, nil
}

func (d subjectDoc) build() (*Subject, error) {
	subject := &Subject{
		ID:         d.ID,
		Name:       d.Name,
		MaxGrade:   DefaultMaxGrade,
		Lessons:    make([]Lesson, 0, len(d.Lessons)),
		Assessment: d.Assessment,
	}
	if d.MaxGrade != nil {
		subject.MaxGrade = *d.MaxGrade
	}

	positions := make(map[int]string, len(d.Lessons))
	for _, ld := range d.Lessons {
		pos, err := ld.position()
		if err != nil {
			return nil, fmt.Errorf("subject %q: %w", d.ID, err)
		}
		if other, dup := positions[pos]; dup {
			return nil, fmt.Errorf("subject %q: lessons %q and %q share position %d: %w",
				d.ID, other, ld.ID, pos, shared.ErrDataCorruption)
		}
		positions[pos] = ld.ID
		subject.Lessons = append(subject.Lessons, Lesson{
			ID:       ld.ID,
			Title:    ld.Title,
			Content:  ld.Content,
			Position: pos,
		})
	}
	sort.Slice(subject.Lessons, func(i, j int) bool {
		return subject.Lessons[i].Position < subject.Lessons[j].Position
	})
	for i := 1; i < len(subject.Lessons); i++ {
		if subject.Lessons[i].Position != subject.Lessons[i-1].Position+1 {
			slog.Warn("gap in lesson numbering, later lessons are unreachable",
				"subject", d.ID,
				"after", subject.Lessons[i-1].ID,
				"next", subject.Lessons[i].ID,
			)
			break
		}
	}

	if err := normalizeAssessment(&subject.Assessment); err != nil {
		return nil, fmt.Errorf("subject %q: %w", d.ID, err)
	}
	return subject, nil
}

// position returns the explicit position or, for legacy documents, the three
// digits preceding the last character of the id ("mat-001a" is 1).
func (d lessonDoc) position() (int, error) {
	if d.Position != nil {
		return *d.Position, nil
	}
	if len(d.ID) < 4 {
		return 0, fmt.Errorf("lesson %q: no position and id too short to derive one: %w", d.ID, shared.ErrDataCorruption)
	}
	n, err := strconv.Atoi(d.ID[len(d.ID)-4 : len(d.ID)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("lesson %q: no position and id carries no index: %w", d.ID, shared.ErrDataCorruption)
	}
	return n, nil
}

func normalizeAssessment(a *Assessment) error {
	sort.SliceStable(a.Questions, func(i, j int) bool {
		return a.Questions[i].Index < a.Questions[j].Index
	})
	for i, q := range a.Questions {
		if i > 0 && a.Questions[i-1].Index == q.Index {
			return fmt.Errorf("assessment %q: duplicate question index %d: %w", a.ID, q.Index, shared.ErrDataCorruption)
		}
		if _, ok := q.Options.Text(q.Answer); !ok {
			return fmt.Errorf("assessment %q: question %d answer %q is not an option: %w",
				a.ID, q.Index, q.Answer, shared.ErrDataCorruption)
		}
	}
	if total := a.TotalWeight(); total != 100 {
		slog.Warn("assessment weights do not sum to 100", "assessment", a.ID, "total", total)
	}
	return nil
}
