package pipeline

import (
	"regexp"
)

// Stage is one step of a pipeline. The set of stages is closed.
type Stage interface {
	isStage()
}

// Pipeline is a base collection and the ordered stages applied to it.
type Pipeline struct {
	Collection string
	Stages     []Stage
}

// Filter keeps records matching every predicate.
type Filter struct {
	Predicates []Predicate
}

// Join attaches records from another collection whose ForeignField matches the
// base record's LocalField. A list-valued LocalField matches any element and
// keeps the list order. Pipeline runs over the matched records before they are
// attached under As.
type Join struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Pipeline     []Stage
	// One attaches the first match (or nil) instead of a list.
	One bool
	// Required drops base records without any match.
	Required bool
}

// Derive computes a field from the record itself.
type Derive struct {
	Field string
	Expr  Expr
}

// Project keeps only Include fields, or drops Exclude fields when Include is empty.
type Project struct {
	Include []string
	Exclude []string
}

// Sort orders records stably. An empty Field sorts by createdAt descending.
type Sort struct {
	Field string
	Desc  bool
}

// ReplaceRoot emits the named sub-record in place of the record. A list field
// emits one record per element; a missing or null field drops the record.
type ReplaceRoot struct {
	Field string
}

// Unwind emits one copy of the record per element of a list field.
type Unwind struct {
	Field         string
	PreserveEmpty bool
}

func (Filter) isStage()      {}
func (Join) isStage()        {}
func (Derive) isStage()      {}
func (Project) isStage()     {}
func (Sort) isStage()        {}
func (ReplaceRoot) isStage() {}
func (Unwind) isStage()      {}

// Op is a predicate operator.
type Op int

const (
	OpEq Op = iota
	OpRegex
	OpExists
	OpOr
)

// Predicate is a field-level condition.
type Predicate struct {
	Field   string
	Op      Op
	Value   any
	Pattern *regexp.Regexp
	Any     []Predicate
}

// Eq matches when the field equals value, or when a list field contains it.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Regex matches string fields against re.
func Regex(field string, re *regexp.Regexp) Predicate {
	return Predicate{Field: field, Op: OpRegex, Pattern: re}
}

// MatchText matches fields containing text, case-insensitively. Text is taken literally.
func MatchText(field, text string) Predicate {
	return Regex(field, regexp.MustCompile("(?i)"+regexp.QuoteMeta(text)))
}

// Exists matches when the field is present and non-null (or absent, when exists is false).
func Exists(field string, exists bool) Predicate {
	return Predicate{Field: field, Op: OpExists, Value: exists}
}

// Or matches when any of preds matches.
func Or(preds ...Predicate) Predicate {
	return Predicate{Op: OpOr, Any: preds}
}

// Matches reports whether r satisfies p.
func (p Predicate) Matches(r Record) bool {
	switch p.Op {
	case OpOr:
		for _, sub := range p.Any {
			if sub.Matches(r) {
				return true
			}
		}
		return false
	case OpExists:
		v, ok := r.Value(p.Field)
		present := ok && v != nil
		want, _ := p.Value.(bool)
		return present == want
	case OpRegex:
		v, ok := r.Value(p.Field)
		if !ok || p.Pattern == nil {
			return false
		}
		for _, elem := range valuesOf(v) {
			if s, isStr := elem.(string); isStr && p.Pattern.MatchString(s) {
				return true
			}
		}
		return false
	default:
		v, ok := r.Value(p.Field)
		if !ok {
			return p.Value == nil
		}
		if _, isList := asList(v); isList {
			for _, elem := range valuesOf(v) {
				if equalValues(elem, p.Value) {
					return true
				}
			}
			return false
		}
		return equalValues(v, p.Value)
	}
}

// MatchesAll reports whether r satisfies every predicate.
func MatchesAll(r Record, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Matches(r) {
			return false
		}
	}
	return true
}

// HasAny reports whether r's field (or any element of it) equals one of values.
func HasAny(r Record, field string, values []any) bool {
	v, ok := r.Value(field)
	if !ok {
		return false
	}
	for _, elem := range valuesOf(v) {
		for _, want := range values {
			if equalValues(elem, want) {
				return true
			}
		}
	}
	return false
}

// Expr computes a derived value from a record.
type Expr interface {
	Eval(r Record) any
}

type sizeExpr struct{ path string }

// Size counts the elements at path. Missing or null is zero.
func Size(path string) Expr { return sizeExpr{path: path} }

func (e sizeExpr) Eval(r Record) any {
	v, ok := r.Value(e.path)
	if !ok || v == nil {
		return 0
	}
	return len(valuesOf(v))
}

type containsExpr struct {
	path  string
	value any
}

// Contains tests whether value appears at path. Empty values never match, so an
// anonymous actor is never reported as a member.
func Contains(path string, value any) Expr { return containsExpr{path: path, value: value} }

func (e containsExpr) Eval(r Record) any {
	if e.value == nil || e.value == "" {
		return false
	}
	return HasAny(r, e.path, []any{e.value})
}

type firstExpr struct{ path string }

// First returns the first element at path, or the value itself when it is not a list.
func First(path string) Expr { return firstExpr{path: path} }

func (e firstExpr) Eval(r Record) any {
	v, ok := r.Value(e.path)
	if !ok || v == nil {
		return nil
	}
	list, isList := asList(v)
	if !isList {
		return v
	}
	if len(list) == 0 {
		return nil
	}
	return list[0]
}
