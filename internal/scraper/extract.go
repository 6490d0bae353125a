package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extraction thresholds. Content shorter than the minimum is treated as
// boilerplate and rejected; accepted content is truncated at the maximum.
const (
	minTitleLength   = 5
	minContentLength = 100
	maxContentLength = 5000
)

// titleClasses are class-name fragments that commonly mark an article
// headline.
var titleClasses = []string{
	"entry-title", "article-title", "post-title", "title",
	"headline", "article-headline", "post-headline",
	"page-title", "single-title", "story-title", "td-post-title",
}

// headerWrappers are known article-header container classes.
var headerWrappers = []string{"entry-header", "article-header", "post-header", "content-header"}

// navKeywords disqualify an h1 that is obviously navigational.
var navKeywords = []string{"menu", "navigation", "skip to", "search", "logo"}

// titleSeparators are the common "Article Title | Site Name" separators.
var titleSeparators = []string{" | ", " - ", " :: ", " — "}

// contentClasses are known article-body container classes, checked in order.
var contentClasses = []string{
	"entry-content", "article-content", "post-content", "content",
	"article-body", "post-body", "story-content", "story-body",
	"main-content", "page-content", "single-content",
}

// contentKeywords loosely match content-ish div classes.
var contentKeywords = []string{"content", "article", "post", "body", "story"}

// contentIDs are known article-body element ids.
var contentIDs = []string{"content", "article", "main", "post"}

// extractor is one stage of a cascade: evaluated in order, first non-empty
// result wins. Keeping the stages as data makes each one testable on its own.
type extractor struct {
	name string
	fn   func(doc *goquery.Document) string
}

var titleExtractors = []extractor{
	{"meta", titleFromMeta},
	{"h1-title-class", titleFromClassedH1},
	{"header-h1", titleFromContainerH1("header h1")},
	{"article-h1", titleFromContainerH1("article h1")},
	{"wrapper-h1", titleFromHeaderWrappers},
	{"any-h1", titleFromAnyH1},
	{"title-tag", titleFromTitleTag},
}

var contentExtractors = []extractor{
	{"article-tag", contentFromSelector("article")},
	{"content-class", contentFromKnownClasses},
	{"content-keyword", contentFromKeywordClasses},
	{"content-id", contentFromKnownIDs},
	{"main-tag", contentFromSelector("main")},
	{"paragraphs", contentFromParagraphs},
}

// ExtractTitle runs the title cascade and returns the first hit, or "".
func ExtractTitle(doc *goquery.Document) string {
	for _, e := range titleExtractors {
		if title := e.fn(doc); title != "" {
			return title
		}
	}
	return ""
}

// ExtractContent runs the content cascade and returns the first candidate
// that clears the minimum length, truncated to the maximum, or "".
func ExtractContent(doc *goquery.Document) string {
	for _, e := range contentExtractors {
		if content := e.fn(doc); content != "" {
			return content
		}
	}
	return ""
}

func titleFromMeta(doc *goquery.Document) string {
	selectors := []string{
		`meta[property="og:title"]`,
		`meta[name="twitter:title"]`,
		`meta[name="title"]`,
	}
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if title := strings.TrimSpace(content); title != "" {
				return title
			}
		}
	}
	return ""
}

func titleFromClassedH1(doc *goquery.Document) string {
	title := ""
	doc.Find("h1").EachWithBreak(func(_ int, h1 *goquery.Selection) bool {
		class := strings.ToLower(h1.AttrOr("class", ""))
		if class == "" {
			return true
		}
		for _, tc := range titleClasses {
			if strings.Contains(class, tc) {
				if t := cleanText(h1); len([]rune(t)) > minTitleLength {
					title = t
					return false
				}
			}
		}
		return true
	})
	return title
}

func titleFromContainerH1(selector string) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		title := ""
		doc.Find(selector).EachWithBreak(func(_ int, h1 *goquery.Selection) bool {
			if t := cleanText(h1); len([]rune(t)) > minTitleLength {
				title = t
				return false
			}
			return true
		})
		return title
	}
}

func titleFromHeaderWrappers(doc *goquery.Document) string {
	for _, wrapper := range headerWrappers {
		if t := titleFromContainerH1("div."+wrapper+" h1")(doc); t != "" {
			return t
		}
	}
	return ""
}

func titleFromAnyH1(doc *goquery.Document) string {
	title := ""
	doc.Find("h1").EachWithBreak(func(_ int, h1 *goquery.Selection) bool {
		t := cleanText(h1)
		if len([]rune(t)) <= minTitleLength {
			return true
		}
		lower := strings.ToLower(t)
		for _, kw := range navKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		title = t
		return false
	})
	return title
}

// titleFromTitleTag is the last resort: the document title, cleaned of the
// trailing "site name" suffix on common separators. The final segment is
// dropped and the longest remaining segment kept.
func titleFromTitleTag(doc *goquery.Document) string {
	title := cleanText(doc.Find("title").First())
	if len([]rune(title)) <= minTitleLength {
		return ""
	}
	for _, sep := range titleSeparators {
		if !strings.Contains(title, sep) {
			continue
		}
		parts := strings.Split(title, sep)
		longest := ""
		for _, part := range parts[:len(parts)-1] {
			part = strings.TrimSpace(part)
			if len(part) > len(longest) {
				longest = part
			}
		}
		if longest != "" {
			return longest
		}
	}
	return title
}

func contentFromSelector(selector string) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		return acceptContent(cleanText(doc.Find(selector).First()))
	}
}

func contentFromKnownClasses(doc *goquery.Document) string {
	for _, class := range contentClasses {
		if c := acceptContent(cleanText(doc.Find("div." + class).First())); c != "" {
			return c
		}
	}
	return ""
}

func contentFromKeywordClasses(doc *goquery.Document) string {
	content := ""
	doc.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		class := strings.ToLower(div.AttrOr("class", ""))
		if class == "" {
			return true
		}
		for _, kw := range contentKeywords {
			if strings.Contains(class, kw) {
				if c := acceptContent(cleanText(div)); c != "" {
					content = c
					return false
				}
			}
		}
		return true
	})
	return content
}

func contentFromKnownIDs(doc *goquery.Document) string {
	for _, id := range contentIDs {
		if c := acceptContent(cleanText(doc.Find("#" + id).First())); c != "" {
			return c
		}
	}
	return ""
}

func contentFromParagraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").EachWithBreak(func(i int, p *goquery.Selection) bool {
		if i >= 15 {
			return false
		}
		if t := cleanText(p); t != "" {
			parts = append(parts, t)
		}
		return true
	})
	return acceptContent(strings.Join(parts, " "))
}

// acceptContent applies the minimum-length gate and maximum-length cap.
func acceptContent(text string) string {
	r := []rune(text)
	if len(r) <= minContentLength {
		return ""
	}
	if len(r) > maxContentLength {
		return string(r[:maxContentLength])
	}
	return text
}

// cleanText extracts the selection's text with whitespace collapsed.
func cleanText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
