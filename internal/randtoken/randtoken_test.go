package randtoken

import "testing"

func TestNew(t *testing.T) {
	a, err := New(32)
	if err != nil {
		t.Fatalf("New: %s", err)
	}

	if len(a) != 64 {
		t.Fatalf("got a token of length %d instead of 64", len(a))
	}

	b, err := New(32)
	if err != nil {
		t.Fatalf("New: %s", err)
	}

	if a == b {
		t.Fatalf("two tokens are identical")
	}
}
