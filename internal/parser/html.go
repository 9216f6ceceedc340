// Package parser flattens HTML message bodies into plain text.
package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockElements = "p, div, br, h1, h2, h3, h4, h5, h6, li, tr, blockquote, table, hr"

// HTMLParser converts HTML bodies into text suitable for snippets and
// address extraction
type HTMLParser struct {
	spaces    *regexp.Regexp
	invisible *regexp.Regexp
}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		spaces: regexp.MustCompile(`[^\S\n]+`),
		// zero-width and other invisible code points used by mail templates
		invisible: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{061C}\x{115F}\x{1160}\x{17B4}\x{17B5}\x{180E}\x{2060}-\x{2064}\x{206A}-\x{206F}\x{FE00}-\x{FE0F}\x{FFF0}-\x{FFF8}]+`),
	}
}

// Parse returns the visible text of html, one block per line. Addresses that
// only appear in mailto links are kept next to their link text so they can
// still be attributed to a company.
func (p *HTMLParser) Parse(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link, img, title").Remove()

	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr, _, _ := strings.Cut(strings.TrimPrefix(href, "mailto:"), "?")
		if addr != "" && !strings.Contains(s.Text(), addr) {
			s.AppendHtml(" &lt;" + addr + "&gt;")
		}
	})

	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := p.invisible.ReplaceAllString(doc.Text(), "")
	text = p.spaces.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}
