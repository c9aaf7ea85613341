// Package format turns chat replies into structured documents.
//
// A reply is split into lines. Each blank line becomes a LineBreak and every
// other line a Paragraph of spans: plain text, **bold**, *italic* and `code`.
// Spans never nest.
package format

import (
	"encoding/json"
	"fmt"
)

// Span is one styled fragment of a line. The set of variants is closed:
// Plain, Bold, Italic and Code.
type Span interface {
	Text() string
	span()
}

type Plain string

type Bold string

type Italic string

type Code string

func (s Plain) Text() string  { return string(s) }
func (s Bold) Text() string   { return string(s) }
func (s Italic) Text() string { return string(s) }
func (s Code) Text() string   { return string(s) }

func (Plain) span()  {}
func (Bold) span()   {}
func (Italic) span() {}
func (Code) span()   {}

// Block is either a Paragraph or a LineBreak.
type Block interface {
	block()
}

// Paragraph holds the spans of one input line in display order.
type Paragraph []Span

// LineBreak stands for a blank input line.
type LineBreak struct{}

func (Paragraph) block() {}
func (LineBreak) block() {}

// Text returns the paragraph content with all markup removed.
func (p Paragraph) Text() string {
	n := 0
	for _, s := range p {
		n += len(s.Text())
	}
	buf := make([]byte, 0, n)
	for _, s := range p {
		buf = append(buf, s.Text()...)
	}
	return string(buf)
}

// Document is a formatted message.
type Document []Block

// Paragraphs returns only the paragraph blocks of d.
func (d Document) Paragraphs() []Paragraph {
	var out []Paragraph
	for _, b := range d {
		if p, ok := b.(Paragraph); ok {
			out = append(out, p)
		}
	}
	return out
}

type spanJSON struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type blockJSON struct {
	Type  string     `json:"type"`
	Spans []spanJSON `json:"spans,omitempty"`
}

// SpanType names a span variant as used in the JSON encoding.
func SpanType(s Span) string {
	switch s.(type) {
	case Plain:
		return "plain"
	case Bold:
		return "bold"
	case Italic:
		return "italic"
	case Code:
		return "code"
	}
	return ""
}

func spanFromJSON(v spanJSON) (Span, error) {
	switch v.Type {
	case "plain":
		return Plain(v.Text), nil
	case "bold":
		return Bold(v.Text), nil
	case "italic":
		return Italic(v.Text), nil
	case "code":
		return Code(v.Text), nil
	}
	return nil, fmt.Errorf("format: unknown span type %q", v.Type)
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make([]blockJSON, 0, len(d))
	for _, b := range d {
		switch b := b.(type) {
		case LineBreak:
			out = append(out, blockJSON{Type: "break"})
		case Paragraph:
			spans := make([]spanJSON, 0, len(b))
			for _, s := range b {
				spans = append(spans, spanJSON{Type: SpanType(s), Text: s.Text()})
			}
			out = append(out, blockJSON{Type: "paragraph", Spans: spans})
		}
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw []blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	doc := make(Document, 0, len(raw))
	for _, b := range raw {
		switch b.Type {
		case "break":
			doc = append(doc, LineBreak{})
		case "paragraph":
			p := make(Paragraph, 0, len(b.Spans))
			for _, v := range b.Spans {
				s, err := spanFromJSON(v)
				if err != nil {
					return err
				}
				p = append(p, s)
			}
			doc = append(doc, p)
		default:
			return fmt.Errorf("format: unknown block type %q", b.Type)
		}
	}
	*d = doc
	return nil
}
