package exam

import "github.com/stemsi/exstem-quiz/internal/model"

// Score grades an answer set. An answer is correct when it equals the
// question's answer key; unanswered questions count as incorrect. Total is
// always the number of questions.
func Score(questions []model.Question, answers map[int]string) model.Score {
	s := model.Score{Total: len(questions)}
	for i, q := range questions {
		if ans, ok := answers[i]; ok && ans == q.CorrectAnswer {
			s.Correct++
		}
	}
	return s
}
