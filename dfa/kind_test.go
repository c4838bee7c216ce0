package dfa

import "testing"

func TestIDTableInternIsStable(t *testing.T) {
	tbl := newIDTable[AnalysisKind]()

	id1, isNew1 := tbl.intern("taint", "taint")
	if !isNew1 || id1 != 0 {
		t.Fatalf("first intern: got (%d, %v), want (0, true)", id1, isNew1)
	}

	id2, isNew2 := tbl.intern("zeroness", "zeroness")
	if !isNew2 || id2 != 1 {
		t.Fatalf("second intern: got (%d, %v), want (1, true)", id2, isNew2)
	}

	id1Again, isNew3 := tbl.intern("taint", "taint (duplicate)")
	if isNew3 || id1Again != id1 {
		t.Fatalf("re-intern: got (%d, %v), want (%d, false)", id1Again, isNew3, id1)
	}

	if got := tbl.name(id1); got != "taint" {
		t.Errorf("re-intern must not overwrite the recorded name: got %q, want %q", got, "taint")
	}

	if got := tbl.name(99); got != "<unknown>" {
		t.Errorf("out-of-range name lookup: got %q, want <unknown>", got)
	}

	if tbl.len() != 2 {
		t.Errorf("len() = %d, want 2", tbl.len())
	}
}
