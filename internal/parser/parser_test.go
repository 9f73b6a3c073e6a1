package parser

import (
	"strings"
	"testing"

	"salesetl/internal/parser/csv"
)

func TestNew(t *testing.T) {
	for _, kind := range []string{"", "csv"} {
		p, err := New(kind, csv.Options{}, nil)
		if err != nil {
			t.Fatalf("New(%q): %v", kind, err)
		}
		res, err := p.Parse(strings.NewReader("a,b\n1,\n"))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(res.Records) != 1 || !res.Records[0].IsNull("b") {
			t.Fatalf("records=%#v", res.Records)
		}
	}
	if _, err := New("json", csv.Options{}, nil); err == nil {
		t.Fatal("expected error for json")
	}
}
