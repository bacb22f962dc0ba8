package notify

// DefaultMaxChunk is the largest message the bot API accepts, with headroom.
const DefaultMaxChunk = 4000

// Split cuts text into chunks of at most max runes, preserving order.
// Plain text is cut exactly at the limit. In rich mode a cut never falls
// inside a tag or an entity, and a cut with no element left open is
// preferred, ideally right after a newline.
func Split(text string, max int, rich bool) []string {
	if max <= 0 {
		max = DefaultMaxChunk
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []string
	for len(runes) > max {
		cut := max
		if rich {
			cut = markupCut(runes, max)
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}

// markupCut returns the best cut position in (0, max].
func markupCut(runes []rune, max int) int {
	var (
		depth      int
		inTag      bool
		closingTag bool
		inEntity   bool
		prev       rune

		balanced        int
		balancedNewline int
		outsideToken    int
	)
	for i := 0; i < max; i++ {
		r := runes[i]
		consumed := false
		if inEntity && !isEntityRune(r) {
			inEntity = false
			consumed = r == ';'
		}
		if !consumed {
			switch {
			case inTag:
				switch {
				case r == '/' && prev == '<':
					closingTag = true
				case r == '>':
					inTag = false
					switch {
					case closingTag:
						if depth > 0 {
							depth--
						}
					case prev != '/':
						depth++
					}
				}
			case inEntity:
			case r == '<':
				inTag, closingTag = true, false
			case r == '&':
				inEntity = true
			}
		}
		prev = r

		pos := i + 1
		if inTag || inEntity {
			continue
		}
		outsideToken = pos
		if depth == 0 {
			balanced = pos
			if r == '\n' {
				balancedNewline = pos
			}
		}
	}

	switch {
	case balancedNewline > 0 && balancedNewline >= max/2:
		return balancedNewline
	case balanced > 0:
		return balanced
	case outsideToken > 0:
		return outsideToken
	default:
		return max
	}
}

func isEntityRune(r rune) bool {
	return r == '#' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
