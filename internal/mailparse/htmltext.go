package mailparse

import (
	"regexp"
	"strings"
)

var (
	styleBlockRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	brTagRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	pCloseRe      = regexp.MustCompile(`(?i)</p>`)
	divCloseRe    = regexp.MustCompile(`(?i)</div>`)
	anyTagRe      = regexp.MustCompile(`<[^>]+>`)
	newlineRunRe  = regexp.MustCompile(`\n{3,}`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// HTMLToText renders an HTML body as readable plain text. This is a blunt
// tag-stripper, not a layout engine: block-level closers become newlines,
// style and script blocks vanish with their content, and only the five common
// entities are unescaped.
func HTMLToText(html string) string {
	s := styleBlockRe.ReplaceAllString(html, "")
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = brTagRe.ReplaceAllString(s, "\n")
	s = pCloseRe.ReplaceAllString(s, "\n\n")
	s = divCloseRe.ReplaceAllString(s, "\n")
	s = anyTagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
