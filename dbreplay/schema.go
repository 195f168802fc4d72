// Package dbreplay holds the schema and parameter helpers the decrypt and
// extract subcommands use to replay the SqlStatement frames a
// backup.Session yields against a live database/sql connection, rebuilding
// a sqlite3 file from the backup's captured DDL and DML.
package dbreplay

import (
	"strings"

	"github.com/charsi/signalbackup-tools/frames"
)

// ColumnType is the declared SQLite type affinity of one column, parsed out
// of a CREATE TABLE statement's column list.
type ColumnType int

const (
	ColumnNone ColumnType = iota
	ColumnText
	ColumnInteger
	ColumnReal
	ColumnBlob
)

func columnTypeFromString(s string) ColumnType {
	switch s {
	case "TEXT":
		return ColumnText
	case "INTEGER":
		return ColumnInteger
	case "REAL":
		return ColumnReal
	case "BLOB":
		return ColumnBlob
	default:
		return ColumnNone
	}
}

// Schema maps a table's column names to their position and declared type
// affinity, so a later INSERT's positional SqlParameter list can be given
// back its names and decoded to the right Go type.
type Schema struct {
	Index map[string]int
	Type  []ColumnType
}

// NewSchema parses the parenthesised column list of a CREATE TABLE
// statement (the part after the table name).
func NewSchema(statementParams string) *Schema {
	cols := strings.Split(Unwrap(statementParams, "()"), ",")

	s := &Schema{
		Index: make(map[string]int),
		Type:  make([]ColumnType, len(cols)),
	}

	// Directives like "UNIQUE(field, field)" get split by commas too;
	// skip from an opening to matching closing parenthesis.
	inParen := false
	j := 0

	for i, desc := range cols {
		trimmed := strings.TrimSpace(desc)
		parts := strings.SplitN(trimmed, " ", 3)

		name := parts[0]
		if strings.Contains(name, "(") {
			inParen = true
		}
		if inParen {
			if strings.Contains(name, ")") {
				inParen = false
			} else {
				j++
			}
			continue
		}

		s.Index[name] = i - j
		if len(parts) > 1 {
			s.Type[i] = columnTypeFromString(parts[1])
		}
	}
	return s
}

// Field looks up one bound parameter by column name, decoded to its
// schema-declared type.
func (s *Schema) Field(row []*frames.SqlParameter, column string) interface{} {
	i, ok := s.Index[column]
	if !ok {
		panic("dbreplay: field not found: " + column)
	}
	return ParameterValue(row[i], s.Type[i])
}

// RowValues decodes every bound parameter of an INSERT in column order,
// ready to splice into sql.DB.Exec's variadic args.
func (s *Schema) RowValues(row []*frames.SqlParameter) []interface{} {
	pv := make([]interface{}, len(row))
	for i, v := range row {
		typ := ColumnNone
		if i < len(s.Type) {
			typ = s.Type[i]
		}
		pv[i] = ParameterValue(v, typ)
	}
	return pv
}

// ParameterValue decodes one bound SqlParameter to the Go type matching its
// tag, falling back to the column's declared affinity when every tag is
// unset (SQLite stores untyped NULLs this way).
//
// IntegerParameter is declared uint64 on the wire but signed values appear
// in practice; database/sql's driver rejects a uint64 with the high bit
// set, so it is always converted to int64 here.
func ParameterValue(p *frames.SqlParameter, typ ColumnType) interface{} {
	switch {
	case p.StringParameter != nil:
		return p.StringParameter
	case p.IntegerParameter != nil:
		return signed(p.IntegerParameter)
	case p.DoubleParameter != nil:
		return p.DoubleParameter
	case p.BlobParameter != nil:
		return p.BlobParameter
	}

	switch typ {
	case ColumnText:
		return p.StringParameter
	case ColumnInteger:
		return signed(p.IntegerParameter)
	case ColumnReal:
		return p.DoubleParameter
	case ColumnBlob:
		return p.BlobParameter
	}
	return nil
}

func signed(u *uint64) *int64 {
	if u == nil {
		return nil
	}
	s := int64(*u)
	return &s
}

// Unwrap strips a pair of delimiter characters off the ends of s, e.g.
// Unwrap(`"foo"`, `""`) == "foo", but only if both are present.
func Unwrap(s string, delim string) string {
	if len(s) > 2 && s[0] == delim[0] && s[len(s)-1] == delim[1] {
		return s[1 : len(s)-1]
	}
	return s
}
