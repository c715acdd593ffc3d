package shell

import "testing"

func kinds(keys []key) []keyKind {
	out := make([]keyKind, len(keys))
	for i, k := range keys {
		out[i] = k.kind
	}
	return out
}

func TestDecodeControlBytes(t *testing.T) {
	var d decoder
	got := kinds(d.decode("a\x7f\x08\x03\x0c\t\r"))
	want := []keyKind{keyRune, keyBackspace, keyBackspace, keyInterrupt, keyClear, keyTab, keyEnter}
	if len(got) != len(want) {
		t.Fatalf("decoded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeCRLFIsOneEnter(t *testing.T) {
	var d decoder
	if got := d.decode("\r\n"); len(got) != 1 || got[0].kind != keyEnter {
		t.Fatalf("decoded %+v, want a single enter", got)
	}
	// LF arriving in the next chunk is still swallowed.
	if got := d.decode("\r"); len(got) != 1 {
		t.Fatalf("decoded %+v", got)
	}
	if got := d.decode("\n"); len(got) != 0 {
		t.Fatalf("trailing LF should be swallowed, got %+v", got)
	}
	if got := d.decode("\n"); len(got) != 1 || got[0].kind != keyEnter {
		t.Fatalf("bare LF should be enter, got %+v", got)
	}
}

func TestDecodeArrowsAcrossChunks(t *testing.T) {
	var d decoder
	if got := d.decode("\x1b["); len(got) != 0 {
		t.Fatalf("partial escape produced %+v", got)
	}
	got := d.decode("Ax\x1bOB\x1b[1;5C")
	want := []keyKind{keyUp, keyRune, keyDown}
	if len(got) != len(want) {
		t.Fatalf("decoded %v, want %v", kinds(got), want)
	}
	for i := range want {
		if got[i].kind != want[i] {
			t.Errorf("key %d = %v, want %v", i, got[i].kind, want[i])
		}
	}
}

func TestDecodeUTF8AndIgnoredControls(t *testing.T) {
	var d decoder
	got := d.decode("é\x01ü\x1b[3~")
	if len(got) != 2 || got[0].r != 'é' || got[1].r != 'ü' {
		t.Fatalf("decoded %+v", got)
	}
}

func TestHistory(t *testing.T) {
	h := newHistory(3)
	if _, ok := h.older(); ok {
		t.Fatal("empty history should not recall")
	}
	for _, c := range []string{"ls", "pwd", "ls", "whoami", "env"} {
		h.add(c)
	}
	list := h.list()
	if len(list) != 3 || list[0] != "ls" || list[1] != "whoami" || list[2] != "env" {
		t.Fatalf("history = %q", list)
	}

	if c, _ := h.older(); c != "env" {
		t.Errorf("older = %q, want env", c)
	}
	if c, _ := h.older(); c != "whoami" {
		t.Errorf("older = %q, want whoami", c)
	}
	h.older()
	if c, _ := h.older(); c != "ls" {
		t.Errorf("older past the end = %q, want ls", c)
	}
	if c, _ := h.newer(); c != "whoami" {
		t.Errorf("newer = %q, want whoami", c)
	}
	h.newer()
	if c, ok := h.newer(); !ok || c != "" {
		t.Errorf("newer past newest = %q,%v, want empty", c, ok)
	}
	if _, ok := h.newer(); ok {
		t.Error("newer when not browsing should report false")
	}
}
