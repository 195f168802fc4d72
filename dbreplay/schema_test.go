package dbreplay

import (
	"testing"

	"github.com/charsi/signalbackup-tools/frames"
)

func TestNewSchemaIndexesColumnsByName(t *testing.T) {
	s := NewSchema("(_id INTEGER PRIMARY KEY, body TEXT, data BLOB)")

	if s.Index["_id"] != 0 {
		t.Fatalf("_id index = %d, want 0", s.Index["_id"])
	}
	if s.Index["body"] != 1 {
		t.Fatalf("body index = %d, want 1", s.Index["body"])
	}
	if s.Index["data"] != 2 {
		t.Fatalf("data index = %d, want 2", s.Index["data"])
	}
	if s.Type[0] != ColumnInteger {
		t.Fatalf("_id type = %v, want ColumnInteger", s.Type[0])
	}
	if s.Type[1] != ColumnText {
		t.Fatalf("body type = %v, want ColumnText", s.Type[1])
	}
	if s.Type[2] != ColumnBlob {
		t.Fatalf("data type = %v, want ColumnBlob", s.Type[2])
	}
}

func TestNewSchemaSkipsTableConstraints(t *testing.T) {
	s := NewSchema("(_id INTEGER, thread_id INTEGER, UNIQUE(_id, thread_id))")

	if s.Index["_id"] != 0 {
		t.Fatalf("_id index = %d, want 0", s.Index["_id"])
	}
	if s.Index["thread_id"] != 1 {
		t.Fatalf("thread_id index = %d, want 1", s.Index["thread_id"])
	}
	if _, ok := s.Index["UNIQUE"]; ok {
		t.Fatalf("UNIQUE(...) constraint should not be indexed as a column")
	}
}

func TestSchemaFieldDecodesByColumnName(t *testing.T) {
	s := NewSchema("(_id INTEGER, body TEXT)")
	id := uint64(42)
	body := "hello"
	row := []*frames.SqlParameter{
		{IntegerParameter: &id},
		{StringParameter: &body},
	}

	got := s.Field(row, "body")
	sp, ok := got.(*string)
	if !ok || sp == nil || *sp != "hello" {
		t.Fatalf("Field(body) = %#v, want *string(hello)", got)
	}
}

func TestParameterValueConvertsIntegerToSigned(t *testing.T) {
	u := uint64(1) << 63 // high bit set; would overflow an unsigned sqlite bind
	got := ParameterValue(&frames.SqlParameter{IntegerParameter: &u}, ColumnNone)
	ip, ok := got.(*int64)
	if !ok || ip == nil {
		t.Fatalf("ParameterValue = %#v, want *int64", got)
	}
	if uint64(*ip) != u {
		t.Fatalf("round-tripped value = %d, want %d", uint64(*ip), u)
	}
}

func TestParameterValueFallsBackToColumnAffinityWhenUntagged(t *testing.T) {
	got := ParameterValue(&frames.SqlParameter{}, ColumnText)
	if got != nil {
		if sp, ok := got.(*string); !ok || sp != nil {
			t.Fatalf("ParameterValue with no tag set = %#v, want nil *string", got)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cases := []struct{ in, delim, want string }{
		{`"messages"`, `""`, "messages"},
		{"(a, b)", "()", "a, b"},
		{"noquotes", `""`, "noquotes"},
	}
	for _, c := range cases {
		if got := Unwrap(c.in, c.delim); got != c.want {
			t.Fatalf("Unwrap(%q, %q) = %q, want %q", c.in, c.delim, got, c.want)
		}
	}
}
