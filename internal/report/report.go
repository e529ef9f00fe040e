// Package report aggregates learner records into enrollment statistics:
// students per course, gender per course, age range and city frequencies.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/learner"
)

const (
	labelTotal       = "Total"
	labelNotEnrolled = "Not enrolled"
	labelNoCity      = "Not informed"
)

// AgeRange is a half-open interval [Min, Max).
type AgeRange struct {
	Min, Max int
}

func (r AgeRange) String() string {
	return fmt.Sprintf("%d |---------- %d", r.Min, r.Max)
}

// AgeRanges are the buckets used by the age table. The last one absorbs
// every age from 70 up.
var AgeRanges = []AgeRange{
	{0, 10}, {10, 20}, {20, 30}, {30, 40}, {40, 50}, {50, 60}, {60, 70}, {70, 100},
}

func ageRange(age int) AgeRange {
	for _, r := range AgeRanges[:len(AgeRanges)-1] {
		if age < r.Max {
			return r
		}
	}
	return AgeRanges[len(AgeRanges)-1]
}

// CourseCount is the number of students enrolled in one course.
type CourseCount struct {
	Course   string
	Students int
}

// GenderCount splits the students of one course by gender.
type GenderCount struct {
	Course string
	Male   int
	Female int
	Unset  int
}

// Frequency is one row of a frequency table.
type Frequency struct {
	Label string
	Count int
}

// Report holds the aggregated counts over every user.
type Report struct {
	Total   int
	Courses []CourseCount
	Genders []GenderCount
	Ages    []Frequency
	Cities  []Frequency
}

// Build aggregates users. Courses are named from the catalog; a course id
// missing from it is reported under the id itself.
func Build(users []*learner.User, cat *catalog.Catalog) *Report {
	courses := map[string]int{}
	genders := map[string]*GenderCount{}
	ages := map[AgeRange]int{}
	cities := map[string]int{}

	for _, u := range users {
		name := courseName(u, cat)
		courses[name]++

		g, ok := genders[name]
		if !ok {
			g = &GenderCount{Course: name}
			genders[name] = g
		}
		switch u.Gender {
		case learner.GenderMale:
			g.Male++
		case learner.GenderFemale:
			g.Female++
		default:
			g.Unset++
		}

		ages[ageRange(u.Age)]++

		city := strings.TrimSpace(u.City)
		if city == "" {
			city = labelNoCity
		}
		cities[city]++
	}

	r := &Report{Total: len(users)}
	for _, name := range sortedKeys(courses) {
		r.Courses = append(r.Courses, CourseCount{Course: name, Students: courses[name]})
		r.Genders = append(r.Genders, *genders[name])
	}
	for _, ar := range AgeRanges {
		if n := ages[ar]; n > 0 {
			r.Ages = append(r.Ages, Frequency{Label: ar.String(), Count: n})
		}
	}
	for _, city := range sortedKeys(cities) {
		r.Cities = append(r.Cities, Frequency{Label: city, Count: cities[city]})
	}
	return r
}

func courseName(u *learner.User, cat *catalog.Catalog) string {
	if !u.Enrolled() {
		return labelNotEnrolled
	}
	if cat != nil {
		if c, err := cat.Course(u.CourseID); err == nil {
			return c.Name
		}
	}
	return u.CourseID
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Table is a named grid of cells, exported as one CSV file or one sheet.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Tables renders the report in export order.
func (r *Report) Tables() []Table {
	return []Table{r.courseTable(), r.genderTable(), r.frequencyTable("age_stats", "Age range", r.Ages), r.frequencyTable("city_stats", "City", r.Cities)}
}

func (r *Report) courseTable() Table {
	t := Table{Name: "course_stats", Header: []string{"Course", "Enrolled students"}}
	for _, c := range r.Courses {
		t.Rows = append(t.Rows, []string{c.Course, strconv.Itoa(c.Students)})
	}
	t.Rows = append(t.Rows, []string{"Total students", strconv.Itoa(r.Total)})
	return t
}

func (r *Report) genderTable() Table {
	t := Table{Name: "gendered_course_stats", Header: []string{"Course", "Men", "Women", "Not informed"}}
	var total GenderCount
	for _, g := range r.Genders {
		t.Rows = append(t.Rows, []string{g.Course, strconv.Itoa(g.Male), strconv.Itoa(g.Female), strconv.Itoa(g.Unset)})
		total.Male += g.Male
		total.Female += g.Female
		total.Unset += g.Unset
	}
	t.Rows = append(t.Rows, []string{labelTotal, strconv.Itoa(total.Male), strconv.Itoa(total.Female), strconv.Itoa(total.Unset)})
	return t
}

// frequencyTable adds the relative (fr) and percentage (f%) columns.
func (r *Report) frequencyTable(name, label string, rows []Frequency) Table {
	t := Table{Name: name, Header: []string{label, "fi", "fr", "f%"}}
	for _, f := range rows {
		fr := relative(f.Count, r.Total)
		t.Rows = append(t.Rows, []string{
			f.Label,
			strconv.Itoa(f.Count),
			fr.StringFixed(2),
			fr.Mul(decimal.NewFromInt(100)).StringFixed(0),
		})
	}
	t.Rows = append(t.Rows, []string{labelTotal, strconv.Itoa(r.Total), "1.00", "100"})
	return t
}

func relative(n, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(total)))
}
