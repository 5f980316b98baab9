// Package phonetic encodes names into American Soundex style codes so that
// spellings which sound alike compare equal.
package phonetic

import "strings"

// Empty is the code for input with no letters A-Z.
const Empty = "0000"

const codeLength = 4

// classes maps consonants to their articulation class. Letters that are not
// listed (vowels, H, W, Y) keep their own letter.
var classes = [26]byte{
	'B' - 'A': '1', 'F' - 'A': '1', 'P' - 'A': '1', 'V' - 'A': '1',
	'C' - 'A': '2', 'G' - 'A': '2', 'J' - 'A': '2', 'K' - 'A': '2',
	'Q' - 'A': '2', 'S' - 'A': '2', 'X' - 'A': '2', 'Z' - 'A': '2',
	'D' - 'A': '3', 'T' - 'A': '3',
	'L' - 'A': '4',
	'M' - 'A': '5', 'N' - 'A': '5',
	'R' - 'A': '6',
}

func class(c byte) byte {
	if d := classes[c-'A']; d != 0 {
		return d
	}
	return c
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isVowel(c byte) bool {
	switch c {
	case 'A', 'E', 'I', 'O', 'U', 'Y':
		return true
	}
	return false
}

// sanitize uppercases name and keeps only A-Z.
func sanitize(name string) []byte {
	out := make([]byte, 0, len(name))
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			out = append(out, byte(r))
		}
	}
	return out
}

// Encode returns the 4-character phonetic code of name, e.g. Robert and Rupert
// both encode to R163. Input without letters encodes to Empty.
func Encode(name string) string {
	letters := sanitize(name)
	if len(letters) == 0 {
		return Empty
	}

	// Map to classes, collapsing runs of one class even when the run is
	// interrupted by H or W. Vowels end a run.
	symbols := make([]byte, 0, len(letters))
	var last byte
	for _, c := range letters {
		s := class(c)
		switch {
		case s == 'H' || s == 'W':
			continue
		case isDigit(s):
			if s == last {
				continue
			}
			last = s
		default:
			last = 0
		}
		symbols = append(symbols, s)
	}

	// The first letter is written out, so its class is not counted twice.
	if len(symbols) > 0 && symbols[0] == class(letters[0]) {
		symbols = symbols[1:]
	}

	code := make([]byte, 0, codeLength)
	code = append(code, letters[0])
	for _, s := range symbols {
		if len(code) == codeLength {
			break
		}
		if isVowel(s) {
			continue
		}
		code = append(code, s)
	}
	for len(code) < codeLength {
		code = append(code, '0')
	}
	return string(code)
}
