package logging

import "testing"

func TestCount(t *testing.T) {
	cases := map[int64]string{0: "0", 999: "999", 1000: "1,000", 128975: "128,975", -4200: "-4,200"}
	for in, want := range cases {
		if got := Count(in); got != want {
			t.Errorf("Count(%d)=%q want %q", in, got, want)
		}
	}
}

func TestNew_Levels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warn", "error"} {
		l, err := New(lvl, false)
		if err != nil {
			t.Fatalf("New(%q): %v", lvl, err)
		}
		_ = l.Sync()
	}
	if _, err := New("loud", true); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
