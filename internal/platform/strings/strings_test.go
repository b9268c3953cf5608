package strings

import "testing"

func TestPtrAndDeref(t *testing.T) {
	if Ptr("") != nil {
		t.Fatalf("Ptr(\"\") should be nil")
	}
	p := Ptr("BR")
	if p == nil || *p != "BR" {
		t.Fatalf("Ptr(BR) = %v", p)
	}
	if Deref(nil) != "" || Deref(p) != "BR" {
		t.Fatalf("Deref mismatch")
	}
}
