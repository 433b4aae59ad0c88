package mf2

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLToText strips markup from an HTML fragment and returns up to maxWords
// words of its text content. Script and style bodies are skipped. A maxWords
// of zero or less means no limit.
func HTMLToText(fragment string, maxWords int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	var words []string
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(words, " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}

			for _, word := range strings.Fields(string(tokenizer.Text())) {
				words = append(words, word)
				if maxWords > 0 && len(words) >= maxWords {
					return strings.Join(words, " ")
				}
			}
		}
	}
}
