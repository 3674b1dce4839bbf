package backend

import (
	"context"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/MrWong99/storylens/pkg/provider/llm"
)

const researcherPrompt = `Act as an expert literary researcher. Find and reproduce the full, detailed text ` +
	`of the chapter, section, or passage the user asks for. Prefer public domain sources. Strip away ALL ` +
	`headers, footers, summaries, and commentary, and return the result as a single, cohesive passage ` +
	`suitable for deep structural analysis.

After the passage, write a line containing only "Sources:" followed by one Markdown link per line, ` +
	`[title](url), for every source you drew on. If you cannot find the passage, reply with nothing at all.`

// sourcesMarker separates the passage from its citations.
var sourcesMarker = regexp.MustCompile(`(?im)^\s*\**sources\**:?\**\s*$`)

var linkParser = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// SearchExcerpt asks the model for the passage described by the query.
func (s *Service) SearchExcerpt(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	req.Query = strings.TrimSpace(req.Query)
	if err := check(req); err != nil {
		return SearchResponse{}, err
	}

	reply, err := s.complete(ctx, "search_excerpt", llm.CompletionRequest{
		SystemPrompt: researcherPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: `Find and return the text for the specific passage: "` + req.Query + `".`,
		}},
	})
	if err != nil {
		return SearchResponse{}, err
	}

	excerpt, sources := SplitSources(reply)
	return SearchResponse{Excerpt: excerpt, Sources: sources}, nil
}

// SplitSources separates a reply into the passage and the links cited after
// a "Sources:" line. Without such a line the whole reply is the passage and
// no sources are reported, since links inside a literary text are not
// citations.
func SplitSources(reply string) (string, []Source) {
	loc := sourcesMarker.FindStringIndex(reply)
	if loc == nil {
		return strings.TrimSpace(reply), []Source{}
	}
	return strings.TrimSpace(reply[:loc[0]]), ExtractLinks(reply[loc[1]:])
}

// ExtractLinks returns the distinct links in a Markdown document in
// document order. Bare URLs are reported with the URL as title.
func ExtractLinks(md string) []Source {
	src := []byte(md)
	doc := linkParser.Parser().Parse(text.NewReader(src))

	sources := []Source{}
	seen := make(map[string]bool)
	add := func(title, uri string) {
		uri = strings.TrimSpace(uri)
		if uri == "" || seen[uri] {
			return
		}
		seen[uri] = true
		if title = strings.TrimSpace(title); title == "" {
			title = uri
		}
		sources = append(sources, Source{Title: title, URI: uri})
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch l := n.(type) {
		case *ast.Link:
			add(nodeText(l, src), string(l.Destination))
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			u := string(l.URL(src))
			add(u, u)
		}
		return ast.WalkContinue, nil
	})
	return sources
}

// nodeText concatenates the text segments below n.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); entering && ok {
			b.Write(t.Segment.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
