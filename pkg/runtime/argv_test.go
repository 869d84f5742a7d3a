package runtime_test

import (
	"testing"

	"github.com/agenthands/nfreeze/pkg/runtime"
)

func TestArgvNarrow(t *testing.T) {
	a := runtime.NewNarrowArgv([]string{"prog", "--flag", "value"})

	if a.Wide() {
		t.Errorf("narrow vector reports wide")
	}
	if a.Len() != 3 {
		t.Errorf("expected 3 slots, got %d", a.Len())
	}
	if a.At(1) != "--flag" {
		t.Errorf("expected %q, got %q", "--flag", a.At(1))
	}
}

func TestArgvWide(t *testing.T) {
	a := runtime.NewWideArgv([][]rune{[]rune("prog"), []rune("héllo")})

	if !a.Wide() {
		t.Errorf("wide vector reports narrow")
	}
	if a.At(1) != "héllo" {
		t.Errorf("expected %q, got %q", "héllo", a.At(1))
	}
}

func TestArgvEscapeRoundTrip(t *testing.T) {
	// A wide slot carrying escape code points for raw bytes 0x80 0xFF
	// must render those original bytes back.
	a := runtime.NewWideArgv([][]rune{
		[]rune("prog"),
		{'a', rune(0xDC80), rune(0xDCFF), 'z'},
	})

	got := a.At(1)
	want := string([]byte{'a', 0x80, 0xFF, 'z'})
	if got != want {
		t.Errorf("expected % x, got % x", want, got)
	}
}

func TestArgvStrings(t *testing.T) {
	a := runtime.NewWideArgv([][]rune{[]rune("p"), []rune("q")})
	got := a.Strings()
	if len(got) != 2 || got[0] != "p" || got[1] != "q" {
		t.Errorf("unexpected render %v", got)
	}
}
