// Package query builds list queries as ordered stage pipelines and compiles
// them onto gorm. A pipeline is plain data, so callers and tests can inspect
// the stages a view produces before anything touches the database.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stage is one step of a Pipeline. The set of stages is closed.
type Stage interface {
	apply(tx *gorm.DB, c *compiler) *gorm.DB
}

// Pipeline is an ordered list of stages run against a base table.
type Pipeline struct {
	From   string
	Stages []Stage
}

// Then appends stages and returns the pipeline.
func (p Pipeline) Then(s ...Stage) Pipeline {
	p.Stages = append(p.Stages[:len(p.Stages):len(p.Stages)], s...)
	return p
}

// Match keeps rows satisfying a raw predicate.
type Match struct {
	SQL  string
	Args []any
}

// Lookup left-joins a table; unmatched rows survive with NULL columns.
type Lookup struct {
	Table string
	On    string
	Args  []any
}

// Unwind inner-joins a table; rows without a match are dropped.
type Unwind struct {
	Table string
	On    string
	Args  []any
}

// Field is a named output column.
type Field struct {
	Name string
	Expr string
	Args []any
}

// Project sets the output columns.
type Project struct {
	Fields []Field
}

// AddRank adds a synthetic integer field ranking Column by its position in
// Order. Values missing from Order rank after every listed value.
type AddRank struct {
	Name   string
	Column string
	Order  []string
}

// Search keeps rows where any column contains Term, ignoring case.
type Search struct {
	Columns []string
	Term    string
}

// Filter keeps rows where Column equals Value.
type Filter struct {
	Column string
	Value  any
}

// Key orders by a projected or ranked field.
type Key struct {
	Field string
	Desc  bool
}

// Sort orders rows by Keys in turn.
type Sort struct {
	Keys []Key
}

// Unset removes fields from the output. They stay available to Sort.
type Unset struct {
	Fields []string
}

// Count replaces the output with the number of matching rows.
type Count struct{}

// Skip drops the first N rows.
type Skip struct {
	N int
}

// Limit caps the output at N rows.
type Limit struct {
	N int
}

type compiler struct {
	fields []Field
	byName map[string]Field
	hidden map[string]bool
	order  []Key
	count  bool
}

func (s Match) apply(tx *gorm.DB, _ *compiler) *gorm.DB {
	return tx.Where(s.SQL, s.Args...)
}

func (s Lookup) apply(tx *gorm.DB, _ *compiler) *gorm.DB {
	return tx.Joins("LEFT JOIN "+s.Table+" ON "+s.On, s.Args...)
}

func (s Unwind) apply(tx *gorm.DB, _ *compiler) *gorm.DB {
	return tx.Joins("JOIN "+s.Table+" ON "+s.On, s.Args...)
}

func (s Project) apply(tx *gorm.DB, c *compiler) *gorm.DB {
	c.fields = c.fields[:0]
	for _, f := range s.Fields {
		c.add(f)
	}
	return tx
}

func (s AddRank) apply(tx *gorm.DB, c *compiler) *gorm.DB {
	c.add(s.field())
	return tx
}

func (s AddRank) field() Field {
	var b strings.Builder
	args := make([]any, 0, len(s.Order))
	b.WriteString("CASE " + s.Column)
	for i, v := range s.Order {
		b.WriteString(" WHEN ? THEN " + strconv.Itoa(i))
		args = append(args, v)
	}
	b.WriteString(" ELSE " + strconv.Itoa(len(s.Order)) + " END")
	return Field{Name: s.Name, Expr: b.String(), Args: args}
}

func (s Search) apply(tx *gorm.DB, _ *compiler) *gorm.DB {
	if s.Term == "" || len(s.Columns) == 0 {
		return tx
	}
	pattern := "%" + escapeLike(strings.ToLower(s.Term)) + "%"
	preds := make([]string, len(s.Columns))
	args := make([]any, len(s.Columns))
	for i, col := range s.Columns {
		preds[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
		args[i] = pattern
	}
	return tx.Where("("+strings.Join(preds, " OR ")+")", args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s Filter) apply(tx *gorm.DB, _ *compiler) *gorm.DB {
	return tx.Where(s.Column+" = ?", s.Value)
}

func (s Sort) apply(tx *gorm.DB, c *compiler) *gorm.DB {
	c.order = append(c.order, s.Keys...)
	return tx
}

func (s Unset) apply(tx *gorm.DB, c *compiler) *gorm.DB {
	for _, f := range s.Fields {
		c.hidden[f] = true
	}
	return tx
}

func (Count) apply(tx *gorm.DB, c *compiler) *gorm.DB {
	c.count = true
	return tx
}

func (s Skip) apply(tx *gorm.DB, c *compiler) *gorm.DB {
	if c.count || s.N <= 0 {
		return tx
	}
	return tx.Offset(s.N)
}

func (s Limit) apply(tx *gorm.DB, c *compiler) *gorm.DB {
	if c.count || s.N <= 0 {
		return tx
	}
	return tx.Limit(s.N)
}

func (c *compiler) add(f Field) {
	c.fields = append(c.fields, f)
	c.byName[f.Name] = f
}

// Compile renders p onto db. A pipeline with a Count stage compiles without
// projection, ordering or paging so the result suits gorm's Count.
func (p Pipeline) Compile(db *gorm.DB) *gorm.DB {
	c := &compiler{byName: map[string]Field{}, hidden: map[string]bool{}}
	tx := db.Table(p.From)
	for _, s := range p.Stages {
		tx = s.apply(tx, c)
	}
	if c.count {
		return tx
	}
	if sel, ok := c.selectExpr(); ok {
		tx = tx.Clauses(clause.Select{Expression: sel})
	}
	if len(c.order) > 0 {
		ord, err := c.orderExpr()
		if err != nil {
			_ = tx.AddError(err)
			return tx
		}
		tx = tx.Order(clause.OrderBy{Expression: ord})
	}
	return tx
}

func (c *compiler) selectExpr() (clause.Expr, bool) {
	var cols []string
	var args []any
	for _, f := range c.fields {
		if c.hidden[f.Name] {
			continue
		}
		cols = append(cols, f.Expr+" AS "+f.Name)
		args = append(args, f.Args...)
	}
	if len(cols) == 0 {
		return clause.Expr{}, false
	}
	return clause.Expr{SQL: strings.Join(cols, ", "), Vars: args}, true
}

func (c *compiler) orderExpr() (clause.Expr, error) {
	parts := make([]string, len(c.order))
	var args []any
	for i, k := range c.order {
		f, ok := c.byName[k.Field]
		if !ok {
			return clause.Expr{}, fmt.Errorf("query: sort on unknown field %q", k.Field)
		}
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		parts[i] = f.Expr + dir
		args = append(args, f.Args...)
	}
	return clause.Expr{SQL: strings.Join(parts, ", "), Vars: args, WithoutParentheses: true}, nil
}

