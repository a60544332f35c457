package exam

import (
	"math"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// BuildCertificate assembles certificate fields from a completed attempt.
// Candidate fields win over the copies stored on the record.
func BuildCertificate(c model.Candidate, quiz *model.Quiz, rec *model.AttemptRecord) (model.CertificateData, error) {
	if quiz == nil || rec == nil || rec.Disqualified {
		return model.CertificateData{}, ErrCertificateUnavailable
	}

	name := c.DisplayName
	if name == "" {
		name = rec.Name
	}
	roll := c.RollNumber
	if roll == "" {
		roll = rec.RollNumber
	}

	return model.CertificateData{
		Name:           name,
		RollNumber:     roll,
		ExamName:       quiz.Name,
		Date:           rec.SubmittedAt,
		Language:       quiz.Language,
		Score:          rec.Score,
		TotalQuestions: rec.TotalQuestions,
		Percentage:     Percentage(rec.Score, rec.TotalQuestions),
	}, nil
}

// Percentage is score/total*100 rounded to two decimals, or nil for an empty
// quiz.
func Percentage(score, total int) *float64 {
	if total <= 0 {
		return nil
	}
	p := math.Round(float64(score)/float64(total)*100*100) / 100
	return &p
}
