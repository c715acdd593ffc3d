package shell

import (
	"unicode"
	"unicode/utf8"
)

type keyKind int

const (
	keyRune keyKind = iota
	keyEnter
	keyBackspace
	keyInterrupt // Ctrl+C
	keyClear     // Ctrl+L
	keyTab
	keyUp
	keyDown
)

type key struct {
	kind keyKind
	r    rune
}

// decoder turns raw terminal input into keys. It keeps the state needed
// across chunks: a CR whose LF has not arrived yet, and a partial escape
// sequence.
type decoder struct {
	lastWasCR bool
	esc       []byte
}

func (d *decoder) decode(data string) []key {
	var out []key
	for i := 0; i < len(data); {
		b := data[i]
		if d.esc != nil {
			d.esc = append(d.esc, b)
			i++
			if k, done := d.escape(); done {
				if k != nil {
					out = append(out, *k)
				}
				d.esc = nil
			}
			continue
		}
		if d.lastWasCR {
			d.lastWasCR = false
			if b == '\n' {
				i++
				continue
			}
		}
		switch b {
		case 0x1b:
			d.esc = []byte{b}
		case '\r', '\n':
			out = append(out, key{kind: keyEnter})
			d.lastWasCR = b == '\r'
		case 0x7f, 0x08:
			out = append(out, key{kind: keyBackspace})
		case 0x03:
			out = append(out, key{kind: keyInterrupt})
		case 0x0c:
			out = append(out, key{kind: keyClear})
		case '\t':
			out = append(out, key{kind: keyTab, r: '\t'})
		default:
			if b < utf8.RuneSelf {
				if b >= 0x20 {
					out = append(out, key{kind: keyRune, r: rune(b)})
				}
				break
			}
			rn, size := utf8.DecodeRuneInString(data[i:])
			if rn != utf8.RuneError {
				out = append(out, key{kind: keyRune, r: rn})
			}
			i += size
			continue
		}
		i++
	}
	return out
}

// escape inspects the buffered escape sequence. done is false while more
// bytes are needed.
func (d *decoder) escape() (k *key, done bool) {
	seq := d.esc
	if len(seq) < 2 {
		return nil, false
	}
	if seq[1] != '[' && seq[1] != 'O' {
		return nil, true
	}
	if len(seq) < 3 {
		return nil, false
	}
	last := seq[len(seq)-1]
	if last != '~' && !unicode.IsLetter(rune(last)) {
		if len(seq) > 8 {
			return nil, true
		}
		return nil, false
	}
	switch last {
	case 'A':
		return &key{kind: keyUp}, true
	case 'B':
		return &key{kind: keyDown}, true
	}
	return nil, true
}
