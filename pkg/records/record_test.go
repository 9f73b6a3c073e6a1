package records

import "testing"

func TestIsNull(t *testing.T) {
	r := Record{"a": nil, "b": "", "c": 0.0}
	for field, want := range map[string]bool{"a": true, "b": false, "c": false, "missing": true} {
		if got := r.IsNull(field); got != want {
			t.Errorf("IsNull(%q)=%v want %v", field, got, want)
		}
	}
}

func TestCloneAll_Independent(t *testing.T) {
	in := []Record{{"Amount": nil}, {"Amount": 1.5}}
	out := CloneAll(in)
	out[0]["Amount"] = 0.0
	delete(out[1], "Amount")
	if !in[0].IsNull("Amount") || in[1]["Amount"] != 1.5 {
		t.Fatalf("input changed: %#v", in)
	}
	if s, ok := (Record{"Status": "Shipped"}).String("Status"); !ok || s != "Shipped" {
		t.Fatalf("String=%q,%v", s, ok)
	}
}
