// Package record defines the canonical leaderboard entry and its
// normalization rules.
//
// Every path that produces records (store rows, edited table rows, the add
// form) goes through Normalize, so the rest of the system can rely on a
// trimmed non-empty name and a score rounded to hundredths.
package record

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// unassignedKey is the comparison key of a record without an id.
const unassignedKey int64 = -1

// ID is an optional integer identity. The zero value is Unassigned.
type ID struct {
	value int64
	valid bool
}

// Unassigned marks a record that still needs an id from the allocator.
var Unassigned = ID{}

// NewID returns an assigned id.
func NewID(v int64) ID { return ID{value: v, valid: true} }

// Value returns the id and whether it is assigned.
func (id ID) Value() (int64, bool) { return id.value, id.valid }

// Valid reports whether the id is assigned.
func (id ID) Valid() bool { return id.valid }

// Key returns the id, or -1 when unassigned. Diffing uses it so two
// unassigned records still compare by name and score.
func (id ID) Key() int64 {
	if !id.valid {
		return unassignedKey
	}
	return id.value
}

// Ptr returns the id as a pointer, nil when unassigned.
func (id ID) Ptr() *int64 {
	if !id.valid {
		return nil
	}
	v := id.value
	return &v
}

// FromPtr is the inverse of Ptr.
func FromPtr(p *int64) ID {
	if p == nil {
		return Unassigned
	}
	return NewID(*p)
}

func (id ID) String() string {
	if !id.valid {
		return ""
	}
	return strconv.FormatInt(id.value, 10)
}

// MarshalJSON encodes an assigned id as a number and an unassigned one as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(id.value, 10)), nil
}

// UnmarshalJSON accepts integers only. Anything else (null, fractions,
// strings) decodes as Unassigned rather than failing.
func (id *ID) UnmarshalJSON(b []byte) error {
	*id = ParseID(string(bytes.TrimSpace(b)))
	return nil
}

// ParseID reads an id from text such as a table row's data attribute.
// Integral numbers are accepted; everything else is Unassigned.
func ParseID(s string) ID {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unassigned
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewID(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return Unassigned
	}
	return NewID(int64(f))
}

// Record is a single leaderboard entry. Lower scores rank better.
type Record struct {
	ID    ID      `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Round2 rounds half-up to two decimal places. Scores too large to scale
// by 100 already have no fractional part and are returned unchanged.
func Round2(score float64) float64 {
	scaled := score*100 + 0.5
	if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
		return score
	}
	return math.Floor(scaled) / 100
}

// Finite replaces NaN and infinities with 0.
func Finite(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// Normalize returns the canonical form of r, or false when r must be
// dropped because its trimmed name is empty.
func Normalize(r Record) (Record, bool) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return Record{}, false
	}
	return Record{
		ID:    r.ID,
		Name:  name,
		Score: Round2(Finite(r.Score)),
	}, true
}

// NormalizeAll normalizes rs and filters out the dropped records.
// The input slice is not modified.
func NormalizeAll(rs []Record) []Record {
	out := make([]Record, 0, len(rs))
	for _, r := range rs {
		if n, ok := Normalize(r); ok {
			out = append(out, n)
		}
	}
	return out
}

// ParseScore coerces table text to a score. Like a lenient float parse it
// reads the longest leading decimal number, so "5.35s" is 5.35. Text with
// no leading number, or a non-finite result, becomes 0; no rounding is
// applied here.
func ParseScore(s string) float64 {
	f, err := strconv.ParseFloat(decimalPrefix(strings.TrimSpace(s)), 64)
	if err != nil {
		return 0
	}
	return Finite(f)
}

// decimalPrefix returns the longest prefix of s of the form
// [+-]digits[.digits][(e|E)[+-]digits], or "" when s does not start with one.
func decimalPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
			digits++
		}
		if digits > 0 {
			i = j
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}
	return s[:i]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// FromCells builds a record from an editable table row: the row's id
// attribute, the name cell and the time cell. The result is not normalized.
func FromCells(idText, name, scoreText string) Record {
	return Record{
		ID:    ParseID(idText),
		Name:  name,
		Score: ParseScore(scoreText),
	}
}

// SameData reports whether a and b hold the same normalized records in the
// same order, comparing id (unassigned as -1), name and score.
func SameData(a, b []Record) bool {
	na, nb := NormalizeAll(a), NormalizeAll(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i].ID.Key() != nb[i].ID.Key() ||
			na[i].Name != nb[i].Name ||
			na[i].Score != nb[i].Score {
			return false
		}
	}
	return true
}

// MarshalRecords is a convenience for logging and CLI output.
func MarshalRecords(rs []Record) string {
	b, err := json.Marshal(rs)
	if err != nil {
		return "[]"
	}
	return string(b)
}
