// =============================================================================
// 🔬 seoaudit — 页面解析
// =============================================================================
// 基于 x/net/html 的单遍 DOM 提取：标题、meta、canonical、标题层级、
// 链接与图片盘点、正文词数。脚本与样式文本不计入正文。
// =============================================================================
package seoaudit

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// pageFacts 一次页面解析的全部产物。
type pageFacts struct {
	Title           string
	MetaDescription string
	MetaRobots      string
	Canonical       string
	Lang            string
	H1s             []string
	H2Count         int
	InternalLinks   int
	ExternalLinks   int
	NofollowLinks   int
	Images          int
	ImagesNoAlt     int
	WordCount       int
}

// parsePage 解析 HTML 文档并统计 SEO 相关事实。pageURL 用于内外链判定。
func parsePage(r io.Reader, pageURL *url.URL) (*pageFacts, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	facts := &pageFacts{}
	var words int
	var inBody, inScript bool

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "html":
				facts.Lang = attr(n, "lang")
			case "title":
				if facts.Title == "" {
					facts.Title = strings.TrimSpace(textOf(n))
				}
			case "meta":
				switch strings.ToLower(attr(n, "name")) {
				case "description":
					facts.MetaDescription = strings.TrimSpace(attr(n, "content"))
				case "robots":
					facts.MetaRobots = strings.TrimSpace(attr(n, "content"))
				}
			case "link":
				if strings.EqualFold(attr(n, "rel"), "canonical") {
					facts.Canonical = strings.TrimSpace(attr(n, "href"))
				}
			case "h1":
				facts.H1s = append(facts.H1s, strings.TrimSpace(textOf(n)))
			case "h2":
				facts.H2Count++
			case "a":
				classifyLink(facts, attr(n, "href"), attr(n, "rel"), pageURL)
			case "img":
				facts.Images++
				if strings.TrimSpace(attr(n, "alt")) == "" {
					facts.ImagesNoAlt++
				}
			case "body":
				inBody = true
			case "script", "style", "noscript":
				inScript = true
			}
		case html.TextNode:
			if inBody && !inScript {
				words += len(strings.Fields(n.Data))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				inScript = false
			}
		}
	}
	walk(doc)

	facts.WordCount = words
	return facts, nil
}

func classifyLink(facts *pageFacts, href, rel string, pageURL *url.URL) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return
	}

	if strings.Contains(strings.ToLower(rel), "nofollow") {
		facts.NofollowLinks++
	}

	u, err := url.Parse(href)
	if err != nil {
		return
	}
	if u.Host == "" || (pageURL != nil && strings.EqualFold(u.Host, pageURL.Host)) {
		facts.InternalLinks++
		return
	}
	facts.ExternalLinks++
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// report 把解析事实整理成给分析适配器（或直接给调用方）的文本清单。
func (f *pageFacts) report(pageURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "page: %s\n", pageURL)
	fmt.Fprintf(&b, "title: %q (%d chars)\n", f.Title, len(f.Title))
	fmt.Fprintf(&b, "meta description: %q (%d chars)\n", f.MetaDescription, len(f.MetaDescription))
	if f.MetaRobots != "" {
		fmt.Fprintf(&b, "meta robots: %s\n", f.MetaRobots)
	}
	fmt.Fprintf(&b, "canonical: %s\n", orDash(f.Canonical))
	fmt.Fprintf(&b, "lang: %s\n", orDash(f.Lang))
	fmt.Fprintf(&b, "h1 count: %d", len(f.H1s))
	for _, h := range f.H1s {
		fmt.Fprintf(&b, "\n  h1: %q", h)
	}
	fmt.Fprintf(&b, "\nh2 count: %d\n", f.H2Count)
	fmt.Fprintf(&b, "links: %d internal, %d external, %d nofollow\n",
		f.InternalLinks, f.ExternalLinks, f.NofollowLinks)
	fmt.Fprintf(&b, "images: %d total, %d missing alt text\n", f.Images, f.ImagesNoAlt)
	fmt.Fprintf(&b, "visible word count: %d", f.WordCount)
	return b.String()
}

// issues 列出机械可判定的 SEO 问题，供审计摘要与直接输出使用。
func (f *pageFacts) issues() []string {
	var out []string
	switch {
	case f.Title == "":
		out = append(out, "missing <title>")
	case len(f.Title) > 60:
		out = append(out, fmt.Sprintf("title too long (%d chars, recommended <= 60)", len(f.Title)))
	}
	switch {
	case f.MetaDescription == "":
		out = append(out, "missing meta description")
	case len(f.MetaDescription) > 160:
		out = append(out, fmt.Sprintf("meta description too long (%d chars, recommended <= 160)", len(f.MetaDescription)))
	}
	switch len(f.H1s) {
	case 0:
		out = append(out, "no <h1> heading")
	case 1:
	default:
		out = append(out, fmt.Sprintf("multiple <h1> headings (%d)", len(f.H1s)))
	}
	if f.Canonical == "" {
		out = append(out, "no canonical link")
	}
	if f.ImagesNoAlt > 0 {
		out = append(out, fmt.Sprintf("%d image(s) without alt text", f.ImagesNoAlt))
	}
	if f.WordCount < 200 {
		out = append(out, fmt.Sprintf("thin content (%d words)", f.WordCount))
	}
	if strings.Contains(strings.ToLower(f.MetaRobots), "noindex") {
		out = append(out, "page is marked noindex")
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
