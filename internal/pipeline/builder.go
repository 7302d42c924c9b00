package pipeline

// Builder assembles a pipeline from optional, runtime-dependent parts.
type Builder struct {
	collection string
	stages     []Stage
}

// From starts a pipeline over collection.
func From(collection string) *Builder {
	return &Builder{collection: collection}
}

// Inner starts a stage list for a Join's nested pipeline.
func Inner() *Builder {
	return &Builder{}
}

// Match appends a Filter. No predicates appends nothing.
func (b *Builder) Match(preds ...Predicate) *Builder {
	if len(preds) == 0 {
		return b
	}
	return b.add(Filter{Predicates: preds})
}

// When applies fn only if cond holds.
func (b *Builder) When(cond bool, fn func(*Builder)) *Builder {
	if cond {
		fn(b)
	}
	return b
}

func (b *Builder) Lookup(j Join) *Builder { return b.add(j) }

func (b *Builder) Derive(field string, expr Expr) *Builder {
	return b.add(Derive{Field: field, Expr: expr})
}

func (b *Builder) Project(fields ...string) *Builder {
	return b.add(Project{Include: fields})
}

func (b *Builder) Exclude(fields ...string) *Builder {
	return b.add(Project{Exclude: fields})
}

func (b *Builder) Sort(field string, desc bool) *Builder {
	return b.add(Sort{Field: field, Desc: desc})
}

func (b *Builder) ReplaceRoot(field string) *Builder {
	return b.add(ReplaceRoot{Field: field})
}

func (b *Builder) Unwind(field string, preserveEmpty bool) *Builder {
	return b.add(Unwind{Field: field, PreserveEmpty: preserveEmpty})
}

// Stages returns a copy of the stages appended so far.
func (b *Builder) Stages() []Stage {
	return append([]Stage(nil), b.stages...)
}

// Build returns the pipeline.
func (b *Builder) Build() Pipeline {
	return Pipeline{Collection: b.collection, Stages: b.Stages()}
}

func (b *Builder) add(s Stage) *Builder {
	b.stages = append(b.stages, s)
	return b
}
