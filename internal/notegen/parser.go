package notegen

import (
	"strings"

	"github.com/scribehealth/dictation-gateway/internal/note"
)

// sectionKeywords map model-output headers to sections. Checked against the
// start of each line, longest practical prefixes first within a section.
var sectionKeywords = map[note.Section][]string{
	note.Subjective: {"subjective", "s:", "chief complaint", "history of present illness"},
	note.Objective:  {"objective", "o:", "physical examination", "vital signs", "exam"},
	note.Assessment: {"assessment", "a:", "impression", "diagnosis", "clinical assessment"},
	note.Plan:       {"plan", "p:", "treatment", "follow-up", "management"},
}

// ParseSections extracts the four note sections from free-form model
// output. Lines are attributed to the most recently seen section header.
// If no headers are found at all, paragraphs are distributed in order; a
// single unstructured blob lands in subjective. Sections with no content
// stay empty so the merge engine keeps their placeholders.
func ParseSections(text string) note.Sections {
	var sections note.Sections
	parts := map[note.Section][]string{}

	var current note.Section
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#*- "))
		lower := strings.ToLower(trimmed)

		if sec, rest, ok := matchHeader(lower, trimmed); ok {
			current = sec
			if rest != "" {
				parts[current] = append(parts[current], rest)
			}
			continue
		}

		if current != "" && trimmed != "" {
			parts[current] = append(parts[current], trimmed)
		}
	}

	matched := false
	for _, sec := range note.AllSections() {
		if body := strings.Join(parts[sec], " "); body != "" {
			setSection(&sections, sec, body)
			matched = true
		}
	}
	if matched {
		return sections
	}

	// No headers recognized: distribute paragraphs in SOAP order.
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) >= 4 {
		sections.Subjective = paragraphs[0]
		sections.Objective = paragraphs[1]
		sections.Assessment = paragraphs[2]
		sections.Plan = paragraphs[3]
	} else if trimmed := strings.TrimSpace(text); trimmed != "" {
		sections.Subjective = trimmed
	}
	return sections
}

// matchHeader reports whether a line opens a section, returning any content
// trailing the header on the same line.
func matchHeader(lower, original string) (note.Section, string, bool) {
	for _, sec := range note.AllSections() {
		for _, kw := range sectionKeywords[sec] {
			if !strings.HasPrefix(lower, kw) {
				continue
			}
			rest := strings.TrimSpace(original[len(kw):])
			// "(S)" style annotations on header lines are noise, not content.
			if i := strings.Index(rest, ")"); strings.HasPrefix(rest, "(") && i >= 0 && i <= 4 {
				rest = rest[i+1:]
			}
			rest = strings.TrimSpace(strings.TrimLeft(rest, ":-– "))
			return sec, rest, true
		}
	}
	return "", "", false
}

func setSection(s *note.Sections, sec note.Section, text string) {
	switch sec {
	case note.Subjective:
		s.Subjective = text
	case note.Objective:
		s.Objective = text
	case note.Assessment:
		s.Assessment = text
	case note.Plan:
		s.Plan = text
	}
}
