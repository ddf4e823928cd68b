// Package render turns generated summaries (markdown) into HTML for the
// gateway and plain text for terminals.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/russross/blackfriday/v2"
)

const extensions = blackfriday.CommonExtensions | blackfriday.HardLineBreak

// HTML renders markdown to an HTML fragment. Raw HTML in the input is
// escaped.
func HTML(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
	})
	out := blackfriday.Run([]byte(normalizeNewlines(markdown)),
		blackfriday.WithExtensions(extensions),
		blackfriday.WithRenderer(renderer),
	)
	return string(out)
}

// PlainText renders markdown and flattens it to readable text: headings on
// their own lines, list items prefixed with "- ".
func PlainText(markdown string) (string, error) {
	fragment := HTML(markdown)
	if fragment == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse rendered summary: %w", err)
	}
	var buf bytes.Buffer
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		writeBlock(&buf, s)
	})
	return strings.TrimSpace(buf.String()), nil
}

func writeBlock(buf *bytes.Buffer, s *goquery.Selection) {
	switch goquery.NodeName(s) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		buf.WriteString(strings.ToUpper(strings.TrimSpace(s.Text())))
		buf.WriteString("\n\n")
	case "ul", "ol":
		ordered := goquery.NodeName(s) == "ol"
		s.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
			if ordered {
				fmt.Fprintf(buf, "%d. ", i+1)
			} else {
				buf.WriteString("- ")
			}
			buf.WriteString(strings.TrimSpace(li.Text()))
			buf.WriteString("\n")
		})
		buf.WriteString("\n")
	case "hr":
		buf.WriteString("----\n\n")
	default:
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		buf.WriteString(text)
		buf.WriteString("\n\n")
	}
}

// Headings lists the section headings of a summary in order.
func Headings(markdown string) []string {
	fragment := HTML(markdown)
	if fragment == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
