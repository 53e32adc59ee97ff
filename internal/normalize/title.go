package normalize

import "strings"

var titleSmallWords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "but": true, "by": true,
	"for": true, "in": true, "nor": true, "of": true, "on": true, "or": true,
	"so": true, "the": true, "to": true, "up": true, "yet": true,
}

// SmartTitle applies Title Case that preserves acronyms and keeps small
// words lowercase. " / " separates independent segments; each segment
// titles its first word regardless.
func SmartTitle(text string) string {
	segments := strings.Split(text, " / ")
	for si, segment := range segments {
		words := strings.Fields(segment)
		for wi, word := range words {
			stripped := strings.TrimRight(word, "+")
			switch {
			case len(stripped) > 1 && stripped == strings.ToUpper(stripped) && stripped != strings.ToLower(stripped):
				// Acronyms like UNESCO or AAAA+ stay as written.
			case wi > 0 && titleSmallWords[strings.ToLower(word)]:
				words[wi] = strings.ToLower(word)
			default:
				words[wi] = capitalize(word)
			}
		}
		segments[si] = strings.Join(words, " ")
	}
	return strings.Join(segments, " / ")
}

func capitalize(word string) string {
	r := []rune(word)
	if len(r) == 0 {
		return word
	}
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}
