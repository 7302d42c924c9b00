// Package pipeline composes de-normalized read models from normalized
// collections using a closed set of declarative stages.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/vidstream/backend/internal/logging"
)

// DefaultSortField is used when a Sort stage names no field.
const DefaultSortField = "createdAt"

// Source reads records for the composer. Scan may apply only part of the
// filter; the composer re-applies it in memory.
type Source interface {
	Scan(ctx context.Context, collection string, filter []Predicate) ([]Record, error)
	Lookup(ctx context.Context, collection, field string, values []any) ([]Record, error)
}

// Composer evaluates pipelines against a Source.
type Composer struct {
	source Source
}

// NewComposer constructs a Composer.
func NewComposer(source Source) *Composer {
	if source == nil {
		panic("pipeline: source must not be nil")
	}
	return &Composer{source: source}
}

// Compose returns a sequence that evaluates p when first ranged over.
func (c *Composer) Compose(ctx context.Context, p Pipeline) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		records, err := c.Collect(ctx, p)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Collect evaluates p and returns every emitted record.
func (c *Composer) Collect(ctx context.Context, p Pipeline) ([]Record, error) {
	ctx, span := logging.StartSpan(ctx, "pipeline."+p.Collection)
	defer span.End()

	base, err := c.source.Scan(ctx, p.Collection, leadingPredicates(p.Stages))
	if err != nil {
		span.Fail(err)
		return nil, fmt.Errorf("scan %s: %w", p.Collection, err)
	}

	items := make([]item, len(base))
	for i, r := range base {
		items[i] = item{rec: cloneRecord(r)}
	}

	items, err = c.run(ctx, items, p.Stages)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	span.Set("scanned", len(base), "emitted", len(items))

	out := make([]Record, len(items))
	for i, it := range items {
		sanitize(it.rec)
		out[i] = it.rec
	}
	return out, nil
}

// item carries a record and the foreign row it came from inside a join.
type item struct {
	group int
	rec   Record
}

func leadingPredicates(stages []Stage) []Predicate {
	var preds []Predicate
	for _, s := range stages {
		f, ok := s.(Filter)
		if !ok {
			break
		}
		preds = append(preds, f.Predicates...)
	}
	return preds
}

func (c *Composer) run(ctx context.Context, items []item, stages []Stage) ([]item, error) {
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch s := stage.(type) {
		case Filter:
			items = filterItems(items, s.Predicates)
		case Join:
			joined, err := c.join(ctx, items, s)
			if err != nil {
				return nil, err
			}
			items = joined
		case Derive:
			for _, it := range items {
				it.rec[s.Field] = s.Expr.Eval(it.rec)
			}
		case Project:
			for i := range items {
				items[i].rec = project(items[i].rec, s)
			}
		case Sort:
			sortItems(items, s)
		case ReplaceRoot:
			items = replaceRoot(items, s.Field)
		case Unwind:
			items = unwind(items, s)
		default:
			return nil, fmt.Errorf("pipeline: unsupported stage %T", stage)
		}
	}
	return items, nil
}

func filterItems(items []item, preds []Predicate) []item {
	kept := items[:0]
	for _, it := range items {
		if MatchesAll(it.rec, preds) {
			kept = append(kept, it)
		}
	}
	return kept
}

func (c *Composer) join(ctx context.Context, items []item, j Join) ([]item, error) {
	locals := make([][]any, len(items))
	var distinct []any
	seen := make(map[string]struct{})
	for i, it := range items {
		v, _ := it.rec.Value(j.LocalField)
		locals[i] = valuesOf(v)
		for _, lv := range locals[i] {
			if lv == nil {
				continue
			}
			k := keyOf(lv)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			distinct = append(distinct, lv)
		}
	}

	var foreign []Record
	if len(distinct) > 0 {
		var err error
		foreign, err = c.source.Lookup(ctx, j.From, j.ForeignField, distinct)
		if err != nil {
			return nil, fmt.Errorf("lookup %s.%s: %w", j.From, j.ForeignField, err)
		}
	}

	index := make(map[string][]int)
	inner := make([]item, len(foreign))
	for i, f := range foreign {
		fv, _ := f.Value(j.ForeignField)
		for _, v := range valuesOf(fv) {
			k := keyOf(v)
			index[k] = append(index[k], i)
		}
		inner[i] = item{group: i, rec: cloneRecord(f)}
	}

	shaped, err := c.run(ctx, inner, j.Pipeline)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[int][]Record, len(foreign))
	rank := make(map[int]int, len(foreign))
	for i, it := range shaped {
		if _, ok := rank[it.group]; !ok {
			rank[it.group] = i
		}
		byGroup[it.group] = append(byGroup[it.group], it.rec)
	}

	out := items[:0]
	for i, it := range items {
		matched := make([]Record, 0)
		used := make(map[int]struct{})
		for _, lv := range locals[i] {
			if lv == nil {
				continue
			}
			// Matches for one local value follow the order of the inner pipeline.
			for _, fi := range ranked(index[keyOf(lv)], rank) {
				if _, dup := used[fi]; dup {
					continue
				}
				used[fi] = struct{}{}
				for _, r := range byGroup[fi] {
					matched = append(matched, cloneRecord(r))
				}
			}
		}

		if j.Required && len(matched) == 0 {
			continue
		}
		if j.One {
			if len(matched) == 0 {
				it.rec[j.As] = nil
			} else {
				it.rec[j.As] = matched[0]
			}
		} else {
			it.rec[j.As] = matched
		}
		out = append(out, it)
	}
	return out, nil
}

func ranked(groups []int, rank map[int]int) []int {
	if len(groups) < 2 {
		return groups
	}
	out := append([]int(nil), groups...)
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}

func project(r Record, p Project) Record {
	var out Record
	if len(p.Include) > 0 {
		out = make(Record, len(p.Include))
		for _, f := range p.Include {
			if v, ok := r[f]; ok {
				out[f] = v
			}
		}
	} else {
		out = make(Record, len(r))
		for k, v := range r {
			out[k] = v
		}
		for _, f := range p.Exclude {
			delete(out, f)
		}
	}
	sanitize(out)
	return out
}

func sortItems(items []item, s Sort) {
	field, desc := s.Field, s.Desc
	if field == "" {
		field, desc = DefaultSortField, true
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, _ := items[i].rec.Value(field)
		b, _ := items[j].rec.Value(field)
		if desc {
			return compare(a, b) > 0
		}
		return compare(a, b) < 0
	})
}

func replaceRoot(items []item, field string) []item {
	var out []item
	for _, it := range items {
		v, ok := it.rec.Value(field)
		if !ok || v == nil {
			continue
		}
		if r, isRecord := toRecord(v); isRecord {
			out = append(out, item{group: it.group, rec: r})
			continue
		}
		list, isList := asList(v)
		if !isList {
			continue
		}
		for _, elem := range list {
			if r, isRecord := toRecord(elem); isRecord {
				out = append(out, item{group: it.group, rec: cloneRecord(r)})
			}
		}
	}
	return out
}

func unwind(items []item, u Unwind) []item {
	var out []item
	for _, it := range items {
		v, _ := it.rec.Value(u.Field)
		list := valuesOf(v)
		if len(list) == 0 {
			if u.PreserveEmpty {
				it.rec[u.Field] = nil
				out = append(out, it)
			}
			continue
		}
		for _, elem := range list {
			rec := cloneRecord(it.rec)
			rec[u.Field] = cloneValue(elem)
			out = append(out, item{group: it.group, rec: rec})
		}
	}
	return out
}
