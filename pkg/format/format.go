package format

import (
	"strings"
)

// delimiter describes one inline markup pattern. Patterns are tried in
// slice order at every position, so bold wins over italic.
type delimiter struct {
	mark string
	make func(string) Span
	// opens reports whether line[i:] may start this pattern.
	opens func(line string, i int) bool
}

var delimiters = []delimiter{
	{mark: "**", make: func(s string) Span { return Bold(s) }},
	{mark: "*", make: func(s string) Span { return Italic(s) }, opens: singleStar},
	{mark: "`", make: func(s string) Span { return Code(s) }},
}

// singleStar keeps a "**" run from being read as an italic opener followed
// by a literal star.
func singleStar(line string, i int) bool {
	return i+1 >= len(line) || line[i+1] != '*'
}

// Format converts raw reply text into a Document. It never fails: anything
// that is not well-formed markup is kept as plain text.
func Format(raw string) Document {
	if raw == "" {
		return Document{}
	}

	lines := strings.Split(raw, "\n")
	doc := make(Document, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			doc = append(doc, LineBreak{})
			continue
		}
		doc = append(doc, formatLine(line))
	}
	return doc
}

func formatLine(line string) Paragraph {
	var spans Paragraph
	plainStart := 0

	for i := 0; i < len(line); {
		span, end, ok := matchAt(line, i)
		if !ok {
			i++
			continue
		}
		if i > plainStart {
			spans = append(spans, Plain(line[plainStart:i]))
		}
		spans = append(spans, span)
		i = end
		plainStart = end
	}
	if plainStart < len(line) {
		spans = append(spans, Plain(line[plainStart:]))
	}

	// Matches always enclose at least one byte, so a non-blank line cannot
	// end up without spans; keep the literal line if it somehow does.
	if len(spans) == 0 {
		spans = Paragraph{Plain(line)}
	}
	return spans
}

// matchAt tries every delimiter at position i and returns the first match
// with the shortest non-empty enclosed text.
func matchAt(line string, i int) (Span, int, bool) {
	for _, d := range delimiters {
		if !strings.HasPrefix(line[i:], d.mark) {
			continue
		}
		if d.opens != nil && !d.opens(line, i) {
			continue
		}
		contentStart := i + len(d.mark)
		if contentStart >= len(line) {
			continue
		}
		// Search from one byte past the opener so the content is non-empty.
		rel := strings.Index(line[contentStart+1:], d.mark)
		if rel < 0 {
			continue
		}
		contentEnd := contentStart + 1 + rel
		return d.make(line[contentStart:contentEnd]), contentEnd + len(d.mark), true
	}
	return nil, 0, false
}
