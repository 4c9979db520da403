// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Strategy pulls the readable text out of an HTML document. A strategy that
// finds nothing usable returns "".
type Strategy func(markup string) (string, error)

// DefaultStrategies prefers a page's main content region and falls back to
// all text under <body>.
var DefaultStrategies = []Strategy{MainContent, BodyText}

// boilerplate is removed before MainContent reads the page.
const boilerplate = "script, style, noscript, template, nav, header, footer, aside, form"

// ExtractText runs strategies in order and returns the first non-empty result.
// A failing strategy is skipped.
func ExtractText(markup string, strategies []Strategy) string {
	for _, strategy := range strategies {
		text, err := strategy(markup)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

// MainContent returns the text of the first <main>, <article> or
// role="main" element with boilerplate stripped.
func MainContent(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	doc.Find(boilerplate).Remove()

	for _, selector := range []string{"main", "article", "[role=main]"} {
		region := doc.Find(selector).First()
		if region.Length() == 0 {
			continue
		}
		if text := textOf(region.Nodes...); text != "" {
			return text, nil
		}
	}
	return "", nil
}

// BodyText returns every text node under <body>, one per line.
func BodyText(markup string) (string, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	if body := findBody(root); body != nil {
		root = body
	}
	return textOf(root), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findBody(c); found != nil {
			return found
		}
	}
	return nil
}

// textOf joins the trimmed, non-empty text nodes below nodes with newlines.
// Script-like elements contribute nothing.
func textOf(nodes ...*html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(parts, "\n")
}

// document is a parsed page used for title and link discovery.
type document struct {
	base *url.URL
	doc  *goquery.Document
}

func parseDocument(pageURL string, markup []byte) (*document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(markup)))
	if err != nil {
		return nil, err
	}
	return &document{base: base, doc: doc}, nil
}

// Title returns the trimmed <title> text.
func (d *document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Links returns the distinct absolute http(s) targets of every <a href>.
func (d *document) Links() []string {
	seen := make(map[string]struct{})
	var links []string
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link := normalizeURL(d.base, href)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "msclkid",
}

// normalizeURL resolves href against base and drops fragments and tracking
// parameters. It returns "" for anything that is not an http(s) link.
func normalizeURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(strings.ToLower(href), scheme) {
			return ""
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if resolved.RawQuery != "" {
		q := resolved.Query()
		stripped := false
		for _, p := range trackingParams {
			if q.Has(p) {
				q.Del(p)
				stripped = true
			}
		}
		if stripped {
			resolved.RawQuery = q.Encode()
		}
	}
	return resolved.String()
}
