package markdown

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bepro/internal/model"

	"github.com/google/uuid"
)

// postMeta is the frontmatter of an importable post. Every field is optional.
type postMeta struct {
	ID             string   `yaml:"id"`
	AuthorID       string   `yaml:"author_id"`
	AuthorName     string   `yaml:"author_name"`
	Tags           []string `yaml:"tags"`
	CreatedAt      string   `yaml:"created_at"`
	Likes          int      `yaml:"likes"`
	Dislikes       int      `yaml:"dislikes"`
	Comments       int      `yaml:"comments"`
	Bookmarks      int      `yaml:"bookmarks"`
	Views          int      `yaml:"views"`
	Sensationalism float64  `yaml:"sensationalism"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime tries the common layouts; anything else is the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// PostFromFile reads a post from a markdown file. The body becomes the
// content; a post without an id gets a random one.
func PostFromFile(path string) (model.Post, error) {
	doc, err := ParseFile(path)
	if err != nil {
		return model.Post{}, err
	}
	return PostFromDocument(doc)
}

// PostFromDocument converts a parsed document into a post.
func PostFromDocument(doc Document) (model.Post, error) {
	var meta postMeta
	if err := doc.Decode(&meta); err != nil {
		return model.Post{}, err
	}
	p := model.Post{
		ID:             strings.TrimSpace(meta.ID),
		AuthorID:       strings.TrimSpace(meta.AuthorID),
		AuthorName:     strings.TrimSpace(meta.AuthorName),
		Content:        strings.TrimSpace(doc.Body),
		Tags:           meta.Tags,
		CreatedAt:      parseTime(meta.CreatedAt),
		Likes:          max(meta.Likes, 0),
		Dislikes:       max(meta.Dislikes, 0),
		Comments:       max(meta.Comments, 0),
		Bookmarks:      max(meta.Bookmarks, 0),
		Views:          max(meta.Views, 0),
		Sensationalism: min(max(meta.Sensationalism, 0), 1),
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p, nil
}

// CollectFiles expands directories into the .md files they contain.
func CollectFiles(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return out, nil
}
