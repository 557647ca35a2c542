package markdown

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document represents a Markdown file with YAML frontmatter.
type Document struct {
	Frontmatter map[string]any
	Body        string

	raw string
}

// ParseFile reads a Markdown file and extracts YAML frontmatter and body.
func ParseFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse splits r into frontmatter and body. Frontmatter is expected at the
// top between two lines containing only "---"; without it the whole input is body.
func Parse(r io.Reader) (Document, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return Document{}, err
	}
	hasFM := string(peek) == "---"

	var fmBuf, bodyBuf strings.Builder
	if hasFM {
		if _, err := br.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return Document{}, err
		}
		for {
			l, err := br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return Document{}, err
			}
			if strings.TrimSpace(l) == "---" {
				break
			}
			fmBuf.WriteString(l)
			if errors.Is(err, io.EOF) {
				break
			}
		}
	}
	for {
		l, err := br.ReadString('\n')
		bodyBuf.WriteString(l)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{}, err
		}
	}

	d := Document{
		Frontmatter: map[string]any{},
		Body:        bodyBuf.String(),
		raw:         fmBuf.String(),
	}
	if hasFM {
		m := map[string]any{}
		if err := yaml.Unmarshal([]byte(d.raw), &m); err != nil {
			return Document{}, fmt.Errorf("frontmatter: %w", err)
		}
		if m != nil {
			d.Frontmatter = m
		}
	}
	return d, nil
}

// Decode unmarshals the frontmatter into v using its yaml tags.
func (d Document) Decode(v any) error {
	if strings.TrimSpace(d.raw) == "" {
		return nil
	}
	if err := yaml.Unmarshal([]byte(d.raw), v); err != nil {
		return fmt.Errorf("frontmatter: %w", err)
	}
	return nil
}

// Frontmatter renders v as a "---" delimited YAML block.
func Frontmatter(v any) (string, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return "---\n" + string(b) + "---\n", nil
}
