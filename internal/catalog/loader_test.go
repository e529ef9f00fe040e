package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/shared"
)

const mathCourseYAML = `
id: ads
name: "Analysis and Systems Development"
subjects:
  - id: prog
    name: "Programming"
    max_grade: 10
    lessons:
      - id: prog-002a
        title: "Loops"
        content: "for and while"
      - id: prog-001a
        title: "Variables"
        content: "names for values"
    assessment:
      id: prog-test
      questions:
        - index: 1
          weight: 50
          question: "Which keyword starts a loop?"
          options:
            c: "if"
            a: "for"
            b: "def"
          answer: a
        - index: 0
          weight: 50
          question: "What does a variable hold?"
          options:
            a: "a value"
            b: "a loop"
          answer: a
  - id: alg
    name: "Algorithms"
    lessons:
      - id: alg-intro
        title: "Intro"
        content: "steps"
        position: 1
    assessment:
      id: alg-test
      questions:
        - index: 0
          weight: 100
          question: "An algorithm is?"
          options:
            a: "a list of steps"
            b: "a fruit"
          answer: a
`

func TestParse_Ordering(t *testing.T) {
	course, err := catalog.Parse([]byte(mathCourseYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(course.Subjects) != 2 {
		t.Fatalf("len(Subjects) = %d, want 2", len(course.Subjects))
	}
	if course.Subjects[0].Name != "Algorithms" || course.Subjects[1].Name != "Programming" {
		t.Errorf("subjects not sorted by name: %q, %q", course.Subjects[0].Name, course.Subjects[1].Name)
	}

	prog, ok := course.Subject("prog")
	if !ok {
		t.Fatal("Subject(prog) not found")
	}
	if prog.Lessons[0].ID != "prog-001a" || prog.Lessons[0].Position != 1 {
		t.Errorf("first lesson = %+v, want prog-001a at position 1", prog.Lessons[0])
	}
	if prog.Lessons[1].Position != 2 {
		t.Errorf("second lesson position = %d, want 2", prog.Lessons[1].Position)
	}

	qs := prog.Assessment.Questions
	if qs[0].Index != 0 || qs[1].Index != 1 {
		t.Errorf("questions not sorted by index: %d, %d", qs[0].Index, qs[1].Index)
	}

	letters := qs[1].Options.Letters()
	want := []catalog.Choice{"c", "a", "b"}
	for i := range want {
		if letters[i] != want[i] {
			t.Fatalf("option order = %v, want %v", letters, want)
		}
	}
}

func TestParse_DefaultMaxGrade(t *testing.T) {
	course, err := catalog.Parse([]byte(mathCourseYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	alg, _ := course.Subject("alg")
	if alg.MaxGrade != catalog.DefaultMaxGrade {
		t.Errorf("MaxGrade = %v, want %v", alg.MaxGrade, catalog.DefaultMaxGrade)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not a mapping", `[1, 2]`},
		{"missing subjects", `{"id": "x", "name": "X"}`},
		{"answer outside alphabet", `
id: x
name: X
subjects:
  - id: s
    name: S
    lessons: []
    assessment:
      id: t
      questions:
        - {index: 0, weight: 100, question: "q", options: {a: "1", b: "2"}, answer: f}
`},
		{"answer not among options", `
id: x
name: X
subjects:
  - id: s
    name: S
    lessons: []
    assessment:
      id: t
      questions:
        - {index: 0, weight: 100, question: "q", options: {a: "1", b: "2"}, answer: c}
`},
		{"duplicate lesson position", `
id: x
name: X
subjects:
  - id: s
    name: S
    lessons:
      - {id: l1, title: a, content: a, position: 1}
      - {id: l2, title: b, content: b, position: 1}
    assessment:
      id: t
      questions:
        - {index: 0, weight: 100, question: "q", options: {a: "1", b: "2"}, answer: a}
`},
		{"duplicate question index", `
id: x
name: X
subjects:
  - id: s
    name: S
    lessons: []
    assessment:
      id: t
      questions:
        - {index: 0, weight: 50, question: "q", options: {a: "1", b: "2"}, answer: a}
        - {index: 0, weight: 50, question: "r", options: {a: "1", b: "2"}, answer: b}
`},
		{"underivable lesson position", `
id: x
name: X
subjects:
  - id: s
    name: S
    lessons:
      - {id: intro, title: a, content: a}
    assessment:
      id: t
      questions:
        - {index: 0, weight: 100, question: "q", options: {a: "1", b: "2"}, answer: a}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(tt.doc))
			if !errors.Is(err, shared.ErrDataCorruption) {
				t.Errorf("Parse() error = %v, want ErrDataCorruption", err)
			}
		})
	}
}

func TestSubject_NextLesson_Gap(t *testing.T) {
	course, err := catalog.Parse([]byte(`
id: x
name: X
subjects:
  - id: s
    name: S
    lessons:
      - {id: s-001a, title: one, content: "1"}
      - {id: s-003a, title: three, content: "3"}
    assessment:
      id: t
      questions:
        - {index: 0, weight: 100, question: "q", options: {a: "1", b: "2"}, answer: a}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	s := course.Subjects[0]

	if _, ok := s.NextLesson("s-001a"); ok {
		t.Error("NextLesson(s-001a) should not find a lesson across a gap")
	}
	if _, ok := s.NextLesson("missing"); ok {
		t.Error("NextLesson(missing) should not find a lesson")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courses.json")
	writeFile(t, path, `{
  "ads": {
    "id": "ads",
    "name": "ADS",
    "subjects": [{
      "id": "prog",
      "name": "Programming",
      "lessons": [{"id": "prog-001a", "title": "Vars", "content": "x"}],
      "assessment": {"id": "t", "questions": [
        {"index": 0, "weight": 100, "question": "q?", "options": {"b": "no", "a": "yes"}, "answer": "a"}
      ]}
    }]
  },
  "law": {"id": "law", "name": "Law", "subjects": []}
}`)

	cat, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	courses := cat.Courses()
	if len(courses) != 2 {
		t.Fatalf("len(Courses()) = %d, want 2", len(courses))
	}
	if courses[0].ID != "ads" || courses[1].ID != "law" {
		t.Errorf("Courses() not sorted by name: %s, %s", courses[0].ID, courses[1].ID)
	}

	course, err := cat.Course("ads")
	if err != nil {
		t.Fatalf("Course(ads) error = %v", err)
	}
	opts := course.Subjects[0].Assessment.Questions[0].Options
	if opts[0].Letter != "b" {
		t.Errorf("JSON option order lost: %v", opts.Letters())
	}
}

func TestLoad_KeyMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.json")
	writeFile(t, path, `{"a": {"id": "b", "name": "B", "subjects": []}}`)

	if _, err := catalog.Load(path); !errors.Is(err, shared.ErrDataCorruption) {
		t.Errorf("Load() error = %v, want ErrDataCorruption", err)
	}
}

func TestLoad_Dir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "courses")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(sub, "ads.yaml"), mathCourseYAML)
	writeFile(t, filepath.Join(sub, "README.md"), "# not a course")

	cat, err := catalog.Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := cat.Course("ads"); err != nil {
		t.Errorf("Course(ads) error = %v", err)
	}
}

func TestLoad_MissingPath(t *testing.T) {
	cat, err := catalog.Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cat.Courses()) != 0 {
		t.Errorf("Courses() = %d, want 0", len(cat.Courses()))
	}
}

func TestLoad_ShippedCatalog(t *testing.T) {
	cat, err := catalog.Load(filepath.Join("..", "..", "data", "courses.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, course := range cat.Courses() {
		for _, s := range course.Subjects {
			if _, ok := s.FirstLesson(); !ok {
				t.Errorf("%s/%s has no lessons", course.ID, s.ID)
			}
			if w := s.Assessment.TotalWeight(); w != 100 {
				t.Errorf("%s/%s weights sum to %d, want 100", course.ID, s.ID, w)
			}
		}
	}
	if len(cat.Courses()) == 0 {
		t.Error("shipped catalog is empty")
	}
}

func TestCatalog_Course_NotFound(t *testing.T) {
	cat := catalog.New()

	_, err := cat.Course("nonexistent")
	if !shared.IsNotFound(err) {
		t.Errorf("Course() error = %v, want ErrNotFound", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
