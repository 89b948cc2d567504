package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

func Excluded(column string) string {
	return fmt.Sprintf("%s = EXCLUDED.%s", column, column)
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder(flavor sqlbuilder.Flavor) *InsertBuilder {
	return &InsertBuilder{flavor.NewInsertBuilder()}
}

// OnConflictDoUpdate appends an upsert clause. Both PostgreSQL and SQLite accept this form.
func (ib *InsertBuilder) OnConflictDoUpdate(columns []string, assignments ...string) *InsertBuilder {
	ib.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(columns, ", "), strings.Join(assignments, ", ")))
	return ib
}

func (ib *InsertBuilder) OnConflictDoNothing() *InsertBuilder {
	ib.SQL("ON CONFLICT DO NOTHING")
	return ib
}

func (ib *InsertBuilder) InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{ib.InsertBuilder.InsertInto(table)}
}

func (ib *InsertBuilder) Cols(col ...string) *InsertBuilder {
	return &InsertBuilder{ib.InsertBuilder.Cols(col...)}
}

func (ib *InsertBuilder) Values(value ...any) *InsertBuilder {
	return &InsertBuilder{ib.InsertBuilder.Values(value...)}
}

func NewUpdateBuilder(flavor sqlbuilder.Flavor) *sqlbuilder.UpdateBuilder {
	return flavor.NewUpdateBuilder()
}

func NewDeleteBuilder(flavor sqlbuilder.Flavor) *sqlbuilder.DeleteBuilder {
	return flavor.NewDeleteBuilder()
}

func NewSelectBuilder(flavor sqlbuilder.Flavor) *sqlbuilder.SelectBuilder {
	return flavor.NewSelectBuilder()
}

// ToAny widens a typed slice for sqlbuilder's variadic In/NotIn helpers.
func ToAny[T any](values []T) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}
