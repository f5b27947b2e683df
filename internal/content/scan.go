/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/kentakayama/bt-verify/internal/domain/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const manifestNodeID = "binary-transparency-manifest"

// ScanResult is what one pass over a document found.
type ScanResult struct {
	Manifest *ManifestNode
	Scripts  []model.ScriptRecord
	// Violations describe markup that can run unverified script. Any
	// violation makes the page INVALID.
	Violations []string
}

// urlAttributes lists, per element, the attributes that may carry a
// javascript: URL.
var urlAttributes = map[string][]string{
	"a":       {"href", "xlink:href"},
	"iframe":  {"src", "srcdoc"},
	"form":    {"action"},
	"input":   {"formaction"},
	"button":  {"formaction"},
	"ncc":     {"href"},
	"embed":   {"src"},
	"object":  {"data"},
	"animate": {"xlink:href"},
	"script":  {"xlink:href"},
	"use":     {"href", "xlink:href"},
	"x":       {"href", "xlink:href"},
}

// Scan parses an HTML document and collects its manifest, scripts and
// violations. Relative script sources are resolved against base.
func Scan(r io.Reader, base *url.URL) (*ScanResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	res := &ScanResult{}
	res.walk(doc, base)
	return res, nil
}

func (res *ScanResult) walk(n *html.Node, base *url.URL) {
	if n.Type == html.ElementNode {
		res.checkAttributes(n)
		if n.DataAtom == atom.Script {
			res.storeScript(n, base)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		res.walk(c, base)
	}
}

func attrName(a html.Attribute) string {
	if a.Namespace != "" {
		return a.Namespace + ":" + a.Key
	}
	return a.Key
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if attrName(a) == name {
			return a.Val, true
		}
	}
	return "", false
}

func (res *ScanResult) checkAttributes(n *html.Node) {
	for _, name := range urlAttributes[strings.ToLower(n.Data)] {
		if v, ok := attr(n, name); ok && strings.Contains(strings.ToLower(v), "javascript") {
			res.Violations = append(res.Violations, "violating attribute: javascript url")
		}
	}
	for _, a := range n.Attr {
		if eventHandlerAttributes.Has(a.Key) {
			res.Violations = append(res.Violations,
				fmt.Sprintf("violating attribute %s from element %s", a.Key, n.Data))
		}
	}
	if n.DataAtom != atom.Math {
		return
	}
	// children of math elements may link anywhere
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for _, a := range c.Attr {
			name := attrName(a)
			if (name == "href" || name == "xlink:href") &&
				strings.HasPrefix(strings.ToLower(a.Val), "javascript") {
				res.Violations = append(res.Violations,
					fmt.Sprintf("violating attribute %s from element %s", name, n.Data))
			}
		}
	}
}

func (res *ScanResult) storeScript(n *html.Node, base *url.URL) {
	id, _ := attr(n, "id")
	name, _ := attr(n, "name")
	if id == manifestNodeID || name == manifestNodeID {
		typ, _ := attr(n, "data-manifest-type")
		rev, _ := attr(n, "data-manifest-rev")
		res.Manifest = &ManifestNode{Text: text(n), Type: typ, Rev: rev}
	}

	if typ, _ := attr(n, "type"); typ == "application/json" {
		return
	}

	src, _ := attr(n, "src")
	if strings.HasPrefix(src, "blob:") {
		res.Violations = append(res.Violations, "script loaded from blob url "+src)
		return
	}

	var otherType string
	if bt, ok := attr(n, "data-btmanifest"); ok {
		if parts := strings.Split(bt, "_"); len(parts) > 1 {
			otherType = parts[1]
		}
	}

	if src != "" {
		res.Scripts = append(res.Scripts, model.ScriptRecord{
			Src:       resolve(base, src),
			OtherType: otherType,
		})
		return
	}
	lookupKey, _ := attr(n, "data-binary-transparency-hash-key")
	res.Scripts = append(res.Scripts, model.ScriptRecord{
		RawJS:     text(n),
		LookupKey: lookupKey,
		OtherType: otherType,
	})
}

// text returns the raw source of a script element.
func text(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
