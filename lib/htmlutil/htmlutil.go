package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// VisibleText extracts the rendered text of an html document, dropping
// script/style/template contents. Markup like `Sold <b>out</b>` comes
// back as "Sold out", which is why stock classification matches against
// this in addition to the raw body.
func VisibleText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()

	var buffer bytes.Buffer
	for _, node := range doc.Selection.Nodes {
		buffer.WriteString(GetText(node))
		buffer.WriteString(" ")
	}
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(buffer.String(), " "))
}

// ContainsAnyFold reports whether s contains at least one of the given
// substrings, case-insensitively.
func ContainsAnyFold(s string, substrings []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if sub == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
