package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/validator"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a document on disk.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// ValidationError lists the fields of a document that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid document: " + strings.Join(parts, "; ")
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ─── Quizzes ────────────────────────────────────────────────────────

// DecodeQuiz parses and validates a quiz document.
func DecodeQuiz(data []byte, format Format) (*model.Quiz, error) {
	var req model.ImportQuizRequest
	if err := decode(data, format, &req); err != nil {
		return nil, err
	}
	if fields := validator.Validate(&req); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}
	return req.ToQuiz()
}

// ReadQuiz loads a quiz document from path.
func ReadQuiz(path string) (*model.Quiz, error) {
	format, data, err := read(path)
	if err != nil {
		return nil, err
	}
	q, err := DecodeQuiz(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

// ─── Candidates ─────────────────────────────────────────────────────

// CandidateDocument is a roster of candidates for seeding the directory.
type CandidateDocument struct {
	Candidates []CandidateRequest `json:"candidates" yaml:"candidates" binding:"required,min=1,dive"`
}

type CandidateRequest struct {
	UserID      string `json:"user_id" yaml:"user_id" binding:"required,max=128"`
	Email       string `json:"email" yaml:"email" binding:"required,email"`
	DisplayName string `json:"display_name" yaml:"display_name" binding:"required,max=255"`
	RollNumber  string `json:"roll_number" yaml:"roll_number" binding:"omitempty,max=64"`
}

// DecodeCandidates parses and validates a candidate roster.
func DecodeCandidates(data []byte, format Format) ([]model.Candidate, error) {
	var doc CandidateDocument
	if err := decode(data, format, &doc); err != nil {
		return nil, err
	}
	if fields := validator.Validate(&doc); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	seen := make(map[string]bool, len(doc.Candidates))
	out := make([]model.Candidate, 0, len(doc.Candidates))
	for i, c := range doc.Candidates {
		if seen[c.UserID] {
			return nil, &ValidationError{Fields: map[string]string{
				fmt.Sprintf("candidates[%d].user_id", i): "duplicate user id " + c.UserID,
			}}
		}
		seen[c.UserID] = true
		out = append(out, model.Candidate{
			UserID:      c.UserID,
			Email:       c.Email,
			DisplayName: c.DisplayName,
			RollNumber:  c.RollNumber,
		})
	}
	return out, nil
}

// ReadCandidates loads a candidate roster from path.
func ReadCandidates(path string) ([]model.Candidate, error) {
	format, data, err := read(path)
	if err != nil {
		return nil, err
	}
	cs, err := DecodeCandidates(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}

func read(path string) (Format, []byte, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	return format, data, nil
}

func decode(data []byte, format Format, dst interface{}) error {
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, dst)
	case FormatJSON:
		err = json.Unmarshal(data, dst)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", format, err)
	}
	return nil
}
