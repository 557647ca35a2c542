// Package digest renders a user's top posts as a markdown file with YAML frontmatter.
package digest

import (
	"bytes"
	_ "embed"
	"strconv"
	"strings"
	"text/template"

	"bepro/internal/model"
)

const (
	headlineRunes = 80
	excerptRunes  = 280
)

type Item struct {
	Headline string
	Excerpt  string
	Author   string
	Tags     []string
	Likes    int
	Comments int
	Created  string
	Score    float64
}

type Data struct {
	Title    string
	Slug     string
	Datetime string
	Username string
	Preface  string
	Items    []Item
}

//go:embed digest.tmpl
var digestTpl string

var compiled = template.Must(template.New("digest").Funcs(template.FuncMap{
	"quote": strconv.Quote,
	"join":  strings.Join,
	"inc":   func(i int) int { return i + 1 },
}).Parse(digestTpl))

func Render(d Data) (string, error) {
	var buf bytes.Buffer
	if err := compiled.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ItemFrom turns a ranked post into a digest entry. The first line of the
// content is the headline and the rest, truncated, the excerpt.
func ItemFrom(sp model.ScoredPost) Item {
	p := sp.Post
	content := strings.TrimSpace(p.Content)
	headline, rest, _ := strings.Cut(content, "\n")
	it := Item{
		Headline: truncate(strings.TrimSpace(headline), headlineRunes),
		Excerpt:  truncate(strings.TrimSpace(rest), excerptRunes),
		Author:   p.AuthorName,
		Tags:     p.Tags,
		Likes:    p.Likes,
		Comments: p.Comments,
		Score:    sp.Score,
	}
	if it.Headline == "" {
		it.Headline = "Untitled post"
	}
	if !p.CreatedAt.IsZero() {
		it.Created = p.CreatedAt.UTC().Format("2006-01-02")
	}
	return it
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
