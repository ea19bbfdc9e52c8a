package facts

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	pstrings "docverify/pkg/platform/strings"
)

// Raw is a collaborator-supplied value before normalization. Kind may be left
// empty for JSON scalars, in which case it is inferred.
type Raw struct {
	Name       string `json:"name"`
	Value      any    `json:"value"`
	Kind       Kind   `json:"kind,omitempty"`
	Provenance string `json:"provenance,omitempty"`
}

// FromRaw normalizes raw collaborator output into a Model.
func FromRaw(raw []Raw) (*Model, error) {
	fs := make([]Fact, 0, len(raw))
	for _, r := range raw {
		f, err := Normalize(r)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return NewModel(fs...)
}

// Normalize converts one raw value into a typed fact.
func Normalize(r Raw) (Fact, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return Fact{}, &FactValueError{Reason: "fact name is required"}
	}
	kind := r.Kind
	if kind == "" {
		kind = inferKind(r.Value)
	}
	if !kind.Valid() {
		return Fact{}, &FactValueError{Name: name, Kind: kind, Value: r.Value, Reason: "unknown kind"}
	}

	fail := func(reason string) (Fact, error) {
		return Fact{}, &FactValueError{Name: name, Kind: kind, Value: r.Value, Reason: reason}
	}

	var f Fact
	switch kind {
	case KindNumber:
		n, err := toNumber(r.Value)
		if err != nil {
			return fail(err.Error())
		}
		f = Number(name, n)
	case KindBool:
		b, err := toBool(r.Value)
		if err != nil {
			return fail(err.Error())
		}
		f = Bool(name, b)
	case KindDate:
		d, err := toDate(r.Value)
		if err != nil {
			return fail(err.Error())
		}
		f = Date(name, d)
	case KindString, KindCategory:
		s, ok := r.Value.(string)
		if !ok {
			return fail("expected a string")
		}
		if kind == KindCategory {
			f = Category(name, strings.TrimSpace(s))
		} else {
			f = String(name, s)
		}
	}
	return f.WithProvenance(r.Provenance), nil
}

func inferKind(v any) Kind {
	switch v.(type) {
	case bool:
		return KindBool
	case float64, float32, int, int64, int32, json.Number:
		return KindNumber
	case time.Time:
		return KindDate
	default:
		return KindString
	}
}

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return ParseAmount(n)
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return ParseBool(b)
	}
	return false, fmt.Errorf("expected a boolean, got %T", v)
}

func toDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		return ParseDate(d)
	}
	return time.Time{}, fmt.Errorf("expected a date, got %T", v)
}

var (
	currencyToken = regexp.MustCompile(`\brs\b\.?|\binr\b|\brupees\b|\bonly\b|₹|/-`)
	amountPattern = regexp.MustCompile(`^(-?)\s*(\d+(?:\.\d+)?)\s*(crores?|lakhs?|lacs?)?$`)
	hasDigit      = regexp.MustCompile(`\d`)
)

// ErrNoAmount is returned when a string holds no numeric amount.
var ErrNoAmount = errors.New("no numeric amount found")

// ErrMalformedAmount is returned when a string holds digits that do not form
// one recognised amount, e.g. scientific notation or two figures.
var ErrMalformedAmount = errors.New("malformed amount")

// ParseAmount reads a monetary amount written the way Indian loan documents
// write them: "₹63,00,000", "Rs. 63,00,000/-", "63 lakh", "6.3 crore",
// "INR 74.50 Lakh", "-2,500". After currency words are removed the text must
// be exactly one amount.
func ParseAmount(s string) (float64, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	text = currencyToken.ReplaceAllString(text, " ")
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))

	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		if !hasDigit.MatchString(text) {
			return 0, ErrNoAmount
		}
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	n, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", m[2], err)
	}
	switch {
	case strings.HasPrefix(m[3], "crore"):
		n *= 1e7
	case strings.HasPrefix(m[3], "lakh"), strings.HasPrefix(m[3], "lac"):
		n *= 1e5
	}
	if m[1] == "-" {
		n = -n
	}
	return n, nil
}

var dateLayouts = []string{DateLayout, "02/01/2006", "02-01-2006", time.RFC3339}

// ParseDate accepts ISO dates and the day-first forms printed on Indian
// identity documents.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseBool accepts true/false, yes/no and 1/0 in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized boolean %q", s)
}

// NormalizeName lowercases a person name and keeps only letters and single
// spaces, so "  R. Kumar " and "r kumar" compare equal.
func NormalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return pstrings.NormalizeSpace(b.String())
}

// NamesMatch reports whether two names are equal after normalization or one
// contains the other (initials dropped, middle names omitted).
func NamesMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// MaskAadhaar renders a 12-digit Aadhaar number as XXXX-XXXX-1234 for logs and
// audit trails. Other values are returned unchanged.
func MaskAadhaar(s string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if len(digits) != 12 {
		return s
	}
	return "XXXX-XXXX-" + digits[8:]
}
