// Package plate turns raw OCR text into a normalized plate number.
//
// Normalization always runs in the same order: Clean, Substitute, Validate.
package plate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Substitution rewrites every occurrence of From with To.
type Substitution struct {
	From rune
	To   rune
}

// Substitutions corrects common misreads. Order matters and the table is
// lossy: several letters collapse onto the same digit.
var Substitutions = []Substitution{
	{'O', '0'},
	{'Q', '0'},
	{'I', '1'},
	{'L', '1'},
	{'S', '5'},
	{'Z', '2'},
	{'G', '6'},
	{'B', '8'},
	{'D', '0'},
	{'U', '0'},
}

// Clean drops everything outside [A-Za-z0-9] and upper-cases the rest.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Substitute applies the table rule by rule, each over the whole string.
func Substitute(s string) string {
	for _, sub := range Substitutions {
		s = strings.ReplaceAll(s, string(sub.From), string(sub.To))
	}
	return s
}

var ErrValidation = errors.New("plate validation failed")

type Rule string

const (
	RuleLength     Rule = "length"
	RuleContent    Rule = "content"
	RuleConfidence Rule = "confidence"
)

type ValidationError struct {
	Rule   Rule
	Plate  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s rule: %s", ErrValidation, e.Rule, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ContentRule decides whether a cleaned plate has acceptable characters.
type ContentRule int

const (
	// LetterOrDigit accepts any plate with at least one letter or one digit.
	LetterOrDigit ContentRule = iota
	// LetterAndDigit requires both a letter and a digit.
	LetterAndDigit
)

type Policy struct {
	MinLength int
	MaxLength int
	Content   ContentRule
	// MinConfidence is exclusive: confidence must be strictly greater.
	MinConfidence float64
}

// DefaultPolicy is the policy the service runs with.
var DefaultPolicy = Policy{
	MinLength:     4,
	MaxLength:     8,
	Content:       LetterOrDigit,
	MinConfidence: 30,
}

// LegacyPolicy is the older, stricter length/content policy without a
// confidence floor. Kept for comparison runs only.
var LegacyPolicy = Policy{
	MinLength:     6,
	MaxLength:     10,
	Content:       LetterAndDigit,
	MinConfidence: -1,
}

// Validate checks length and content of an already cleaned plate.
func (p Policy) Validate(s string) error {
	if n := len(s); n < p.MinLength || n > p.MaxLength {
		return &ValidationError{
			Rule:   RuleLength,
			Plate:  s,
			Detail: fmt.Sprintf("length %d outside [%d,%d]", n, p.MinLength, p.MaxLength),
		}
	}

	var letters, digits int
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
		case r >= '0' && r <= '9':
			digits++
		}
	}

	switch p.Content {
	case LetterAndDigit:
		if letters == 0 || digits == 0 {
			return &ValidationError{Rule: RuleContent, Plate: s, Detail: "needs at least one letter and one digit"}
		}
	default:
		if letters == 0 && digits == 0 {
			return &ValidationError{Rule: RuleContent, Plate: s, Detail: "needs at least one letter or digit"}
		}
	}
	return nil
}

// Normalize runs the full pipeline on raw engine output.
func (p Policy) Normalize(raw string, confidence float64) (string, error) {
	s := Substitute(Clean(raw))
	if err := p.Validate(s); err != nil {
		return "", err
	}
	if confidence <= p.MinConfidence {
		return "", &ValidationError{
			Rule:   RuleConfidence,
			Plate:  s,
			Detail: fmt.Sprintf("confidence %.1f not above %.1f", confidence, p.MinConfidence),
		}
	}
	return s, nil
}
