package shell

const defaultHistorySize = 200

// history keeps submitted commands, most recent last. Re-submitting a
// command moves it to the end instead of storing it twice.
type history struct {
	entries []string
	max     int
	// pos counts back from the newest entry; -1 means not browsing.
	pos int
}

func newHistory(size int) history {
	if size <= 0 {
		size = defaultHistorySize
	}
	return history{max: size, pos: -1}
}

func (h *history) add(cmd string) {
	h.pos = -1
	kept := h.entries[:0]
	for _, e := range h.entries {
		if e != cmd {
			kept = append(kept, e)
		}
	}
	h.entries = append(kept, cmd)
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = h.entries[over:]
	}
}

// older steps back and returns the recalled command. ok is false when
// there is no history.
func (h *history) older() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.pos < len(h.entries)-1 {
		h.pos++
	}
	return h.entries[len(h.entries)-1-h.pos], true
}

// newer steps forward. Stepping past the newest entry returns "" and
// leaves browsing mode. ok is false when not browsing.
func (h *history) newer() (string, bool) {
	switch {
	case h.pos > 0:
		h.pos--
		return h.entries[len(h.entries)-1-h.pos], true
	case h.pos == 0:
		h.pos = -1
		return "", true
	default:
		return "", false
	}
}

func (h *history) list() []string {
	return append([]string(nil), h.entries...)
}
