// Package assessment administers a subject's assessment, scores the answers
// and builds the review shown afterwards. Nothing here touches storage.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/shared"
)

// Precision is the number of decimal places kept in a score.
const Precision = 3

// WeightPool is the weight total that maps to a full score.
const WeightPool = 100

// Asker presents one question and returns the chosen letter. number is
// 1-based. Returning shared.ErrInvalidSelection makes the question be asked
// again; any other error aborts the administration.
type Asker interface {
	Ask(ctx context.Context, q catalog.Question, number, total int) (catalog.Choice, error)
}

// AskerFunc adapts a function to Asker.
type AskerFunc func(ctx context.Context, q catalog.Question, number, total int) (catalog.Choice, error)

func (f AskerFunc) Ask(ctx context.Context, q catalog.Question, number, total int) (catalog.Choice, error) {
	return f(ctx, q, number, total)
}

// Answer pairs the selected letter with the correct one.
type Answer struct {
	Selected catalog.Choice
	Correct  catalog.Choice
}

// IsCorrect reports whether the selection matches.
func (a Answer) IsCorrect() bool {
	return a.Selected == a.Correct
}

// RawResult maps question index to the answer given.
type RawResult map[int]Answer

// Administer asks every question once, in ascending index order. A letter
// outside the question's options is treated like an invalid selection and
// the same question is asked again.
func Administer(ctx context.Context, a catalog.Assessment, asker Asker) (RawResult, error) {
	questions := ordered(a)
	result := make(RawResult, len(questions))

	for i, q := range questions {
		for {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("assessment %s: %w", a.ID, err)
			}

			choice, err := asker.Ask(ctx, q, i+1, len(questions))
			if errors.Is(err, shared.ErrInvalidSelection) {
				slog.Debug("invalid answer, asking again", "assessment_id", a.ID, "question", q.Index)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("assessment %s question %d: %w", a.ID, q.Index, err)
			}
			if _, ok := q.Options.Text(choice); !ok {
				slog.Debug("answer outside options, asking again",
					"assessment_id", a.ID,
					"question", q.Index,
					"choice", choice,
				)
				continue
			}

			result[q.Index] = Answer{Selected: choice, Correct: q.Answer}
			break
		}
	}
	return result, nil
}

// Score returns the weight of the correct answers over WeightPool, rounded
// half away from zero to Precision places and capped at 1.
func Score(a catalog.Assessment, r RawResult) float64 {
	earned := int64(0)
	for _, q := range a.Questions {
		if ans, ok := r[q.Index]; ok && ans.IsCorrect() {
			earned += int64(q.Weight)
		}
	}

	score := decimal.NewFromInt(earned).
		Div(decimal.NewFromInt(WeightPool)).
		Round(Precision)
	if score.GreaterThan(decimal.NewFromInt(1)) {
		score = decimal.NewFromInt(1)
	}
	f, _ := score.Float64()
	return f
}

// DisplayGrade scales a score to the subject's grading range with one decimal.
func DisplayGrade(score, maxGrade float64) float64 {
	f, _ := decimal.NewFromFloat(score).
		Mul(decimal.NewFromFloat(maxGrade)).
		Round(1).
		Float64()
	return f
}

// ReviewItem is one line of the post-assessment review.
type ReviewItem struct {
	Number       int
	Question     catalog.Question
	Selected     catalog.Choice
	SelectedText string
	CorrectText  string
	Correct      bool
}

// Review lists the questions in administration order with the chosen and
// correct option texts. Unanswered questions have an empty selection.
func Review(a catalog.Assessment, r RawResult) []ReviewItem {
	questions := ordered(a)
	items := make([]ReviewItem, 0, len(questions))
	for i, q := range questions {
		item := ReviewItem{Number: i + 1, Question: q}
		item.CorrectText, _ = q.Options.Text(q.Answer)
		if ans, ok := r[q.Index]; ok {
			item.Selected = ans.Selected
			item.SelectedText, _ = q.Options.Text(ans.Selected)
			item.Correct = ans.IsCorrect()
		}
		items = append(items, item)
	}
	return items
}
