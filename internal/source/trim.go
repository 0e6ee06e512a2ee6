package source

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace. It is
// a cheap pre-check that lets hot paths skip strings.TrimSpace for the
// common already-clean case.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
