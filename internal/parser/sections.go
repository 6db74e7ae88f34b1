package parser

import (
	"regexp"
	"strings"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

var (
	numberedHeading  = regexp.MustCompile(`^((?:[A-Z]|\d+)(?:\.\d+)*)\s+((?:[A-Z]|\d+)[A-Za-z\s\-:]+)$`)
	titleCaseHeading = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})$`)

	spaceRuns = regexp.MustCompile(`[ \t]+`)
	blankRuns = regexp.MustCompile(`\n\s*\n`)
	nonWord   = regexp.MustCompile(`[^\w\s]`)
)

// sectionPatterns maps canonical section keys to heading keywords.
var sectionPatterns = map[string][]string{
	"abstract":     {"abstract", "summary"},
	"introduction": {"introduction", "background", "motivation"},
	"conclusion":   {"conclusion", "conclusions", "final thoughts"},
}

// titleCaseAllowlist lists the unnumbered headings worth keeping. Plain
// title-case lines match too much body text otherwise.
var titleCaseAllowlist = map[string]struct{}{
	"abstract":               {},
	"limitations":            {},
	"ethics statement":       {},
	"ethical statement":      {},
	"ethical considerations": {},
	"acknowledgement":        {},
	"acknowledgements":       {},
	"references":             {},
}

type heading struct {
	text  string
	start int
	level int
}

// ExtractSections splits free text into named sections keyed by canonical
// type, using numbered and allowlisted title-case headings as boundaries.
func ExtractSections(text string) map[string]crawler.PaperSection {
	text = normalizeText(text)
	headings := findHeadings(text)
	return classifySections(headings, text)
}

func normalizeText(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func findHeadings(text string) []heading {
	var headings []heading
	pos := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			pos += len(line)
			continue
		}
		if m := numberedHeading.FindStringSubmatch(stripped); m != nil {
			level := len(strings.Split(strings.Trim(m[1], "."), "."))
			headings = append(headings, heading{
				text:  strings.TrimSpace(m[2]),
				start: pos,
				level: level,
			})
		} else if m := titleCaseHeading.FindStringSubmatch(stripped); m != nil {
			name := strings.TrimSpace(m[1])
			if _, ok := titleCaseAllowlist[strings.ToLower(name)]; ok {
				headings = append(headings, heading{text: name, start: pos, level: 1})
			}
		}
		pos += len(line)
	}
	return headings
}

func classifySections(headings []heading, text string) map[string]crawler.PaperSection {
	sections := make(map[string]crawler.PaperSection, len(headings))
	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		content := strings.TrimSpace(text[h.start:end])
		if _, rest, found := strings.Cut(content, "\n"); found {
			content = strings.TrimSpace(rest)
		} else {
			content = ""
		}
		sections[classifySectionType(h.text)] = crawler.PaperSection{
			Title:   h.text,
			Content: content,
			Level:   h.level,
		}
	}
	return sections
}

func classifySectionType(headingText string) string {
	lower := strings.ToLower(headingText)
	for sectionType, keywords := range sectionPatterns {
		for _, kw := range keywords {
			if containsWord(lower, kw) {
				return sectionType
			}
		}
	}
	slug := nonWord.ReplaceAllString(lower, "_")
	return strings.ReplaceAll(slug, " ", "_")
}

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isWordByte(text[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(text) || !isWordByte(text[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
