package chat

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/sipeed/picochat/pkg/format"
)

// Labels name the two sides of a conversation in exports.
type Labels struct {
	User string
	Bot  string
}

var DefaultLabels = Labels{User: "You", Bot: "Bot"}

// Transcript renders msgs as a markdown document. User text is written as
// typed; bot replies are written from their formatted document.
func Transcript(title string, msgs []Message, labels Labels) string {
	if labels.User == "" {
		labels.User = DefaultLabels.User
	}
	if labels.Bot == "" {
		labels.Bot = DefaultLabels.Bot
	}

	var sb strings.Builder
	if title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", title)
	}
	for _, m := range msgs {
		label := labels.Bot
		body := format.Markdown(m.Doc)
		if m.IsUser() {
			label = labels.User
			body = m.Text
		}
		fmt.Fprintf(&sb, "**%s** (%s)\n\n%s\n\n", label, m.Clock(), strings.TrimRight(body, "\n"))
	}
	return sb.String()
}

// TranscriptHTML renders the markdown transcript as a standalone HTML page.
// Raw HTML inside messages is dropped.
func TranscriptHTML(title string, msgs []Message, labels Labels) []byte {
	md := []byte(Transcript(title, msgs, labels))

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Title: title,
		Flags: mdhtml.CommonFlags | mdhtml.CompletePage | mdhtml.SkipHTML,
	})
	return markdown.ToHTML(md, p, r)
}
