// Package mission extracts structured missions from the tag-delimited text a
// language model is asked to produce.
package mission

import (
	"regexp"
	"strconv"
	"strings"

	"bepro/internal/model"
)

const (
	Easy   = "easy"
	Medium = "medium"
	Hard   = "hard"
)

var defaultXP = map[string]int{Easy: 50, Medium: 100, Hard: 200}

type field struct {
	open, close *regexp.Regexp
}

func newField(names ...string) field {
	alt := strings.Join(names, "|")
	return field{
		open:  regexp.MustCompile(`(?i)\[(?:` + alt + `)\]`),
		close: regexp.MustCompile(`(?i)\[/(?:` + alt + `)\]`),
	}
}

var (
	missionOpen  = regexp.MustCompile(`(?i)\[mission\]`)
	missionClose = regexp.MustCompile(`(?i)\[/mission\]`)
	anyTag       = regexp.MustCompile(`(?i)\[/?(?:mission|title|name|description|desc|details|difficulty|level|xp|points|reward|tags|skills)\]`)
	digits       = regexp.MustCompile(`\d+`)

	titleField       = newField("title", "name")
	descriptionField = newField("description", "desc", "details")
	difficultyField  = newField("difficulty", "level")
	xpField          = newField("xp", "points", "reward")
	tagsField        = newField("tags", "skills")
)

// Parse extracts every mission it can find in text. Blocks without a title
// are dropped; other missing fields get defaults. It never fails.
func Parse(text string) []model.Mission {
	var out []model.Mission
	for _, block := range blocks(text) {
		title := strings.Join(strings.Fields(titleField.extract(block)), " ")
		if title == "" {
			continue
		}
		difficulty := NormalizeDifficulty(difficultyField.extract(block))
		out = append(out, model.Mission{
			Title:       title,
			Description: descriptionField.extract(block),
			Difficulty:  difficulty,
			XP:          parseXP(xpField.extract(block), difficulty),
			Tags:        splitTags(tagsField.extract(block)),
		})
	}
	return out
}

// blocks splits text on [MISSION] markers. A missing [/MISSION] ends the
// block at the next marker; text without markers is one block.
func blocks(text string) []string {
	starts := missionOpen.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		return []string{text}
	}
	out := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		body := text[loc[1]:end]
		if c := missionClose.FindStringIndex(body); c != nil {
			body = body[:c[0]]
		}
		out = append(out, body)
	}
	return out
}

// extract returns the trimmed field value. Without a closing tag the value
// runs to the next known tag or the end of the block.
func (f field) extract(block string) string {
	loc := f.open.FindStringIndex(block)
	if loc == nil {
		return ""
	}
	rest := block[loc[1]:]
	if c := f.close.FindStringIndex(rest); c != nil {
		return strings.TrimSpace(rest[:c[0]])
	}
	if k := anyTag.FindStringIndex(rest); k != nil {
		return strings.TrimSpace(rest[:k[0]])
	}
	return strings.TrimSpace(rest)
}

// NormalizeDifficulty maps free text onto easy, medium or hard.
func NormalizeDifficulty(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "easy"), strings.Contains(s, "beginner"):
		return Easy
	case strings.Contains(s, "medium"), strings.Contains(s, "intermediate"):
		return Medium
	case strings.Contains(s, "hard"), strings.Contains(s, "advanced"),
		strings.Contains(s, "expert"):
		return Hard
	default:
		return Medium
	}
}

func parseXP(s, difficulty string) int {
	if m := digits.FindString(s); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return n
		}
	}
	return defaultXP[difficulty]
}

func splitTags(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '#' || r == ';' || r == '\n'
	})
	seen := map[string]struct{}{}
	var out []string
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
