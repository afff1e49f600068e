package schemasync

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/modeltranslation/model"
)

// Statement is one DDL change and the statement undoing it.
type Statement struct {
	SQL    string
	Revert string
}

// Planner renders drift as DDL for a gorm dialect.
type Planner struct {
	dialector gorm.Dialector
}

func NewPlanner(dialector gorm.Dialector) *Planner {
	return &Planner{dialector: dialector}
}

func (p *Planner) quote(name string) string {
	var b strings.Builder
	p.dialector.QuoteTo(&b, name)
	return b.String()
}

// ColumnType is the storage type of field in the planner's dialect.
func (p *Planner) ColumnType(field model.FieldDescriptor) string {
	return p.dialector.DataTypeOf(&schema.Field{
		Name:     field.Name,
		DBName:   field.ColumnName(),
		DataType: field.DataType,
		Size:     field.Size,
	})
}

// Plan adds one column per localized field. A column that must not be null is first filled
// from the base column, then constrained.
func (p *Planner) Plan(table string, base model.FieldDescriptor, localized []model.FieldDescriptor) []Statement {
	qTable := p.quote(table)

	var statements []Statement
	for _, field := range localized {
		qColumn := p.quote(field.ColumnName())

		statements = append(statements, Statement{
			SQL:    fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", qTable, qColumn, p.ColumnType(field)),
			Revert: fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", qTable, qColumn),
		})

		if field.Nullable {
			continue
		}

		statements = append(statements,
			Statement{
				SQL: fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL;",
					qTable, qColumn, p.quote(base.ColumnName()), qColumn),
				Revert: fmt.Sprintf("UPDATE %s SET %s = NULL;", qTable, qColumn),
			},
			Statement{
				SQL:    fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", qTable, qColumn),
				Revert: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", qTable, qColumn),
			},
		)
	}
	return statements
}
