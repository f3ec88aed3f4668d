package sites

import (
	"strings"

	"golang.org/x/net/html"
)

// Last-resort extraction: when every CSS-selector strategy misses (markup
// redesign, renamed classes), walk the raw token stream and collect anchors
// or image tags directly. Crude, but survives most layout churn.

type anchor struct {
	href string
	text string
}

// scanAnchors tokenizes the page and returns every <a href> with its text.
func scanAnchors(page string) []anchor {
	tokenizer := html.NewTokenizer(strings.NewReader(page))

	var anchors []anchor
	var current *anchor
	var textParts []string

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return anchors
		case html.StartTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" && attr.Val != "" {
					current = &anchor{href: attr.Val}
					textParts = textParts[:0]
					break
				}
			}
		case html.TextToken:
			if current != nil {
				textParts = append(textParts, string(tokenizer.Text()))
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "a" && current != nil {
				current.text = strings.TrimSpace(strings.Join(textParts, ""))
				anchors = append(anchors, *current)
				current = nil
			}
		}
	}
}

// scanImageAttrs tokenizes the page and returns, for every <img>, the value
// of the first attribute in attrPriority that is set.
func scanImageAttrs(page string, attrPriority ...string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(page))

	var urls []string
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return urls
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		if token.Data != "img" {
			continue
		}

		attrs := make(map[string]string, len(token.Attr))
		for _, attr := range token.Attr {
			attrs[attr.Key] = attr.Val
		}
		for _, key := range attrPriority {
			if val := strings.TrimSpace(attrs[key]); val != "" {
				urls = append(urls, val)
				break
			}
		}
	}
}
