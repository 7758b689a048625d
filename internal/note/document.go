// Package note holds the four-section clinical note model and the merge
// rules that keep a streaming session's document monotonically improving:
// once a section holds real content it never reverts to a placeholder.
package note

import "strings"

// Section names one of the four parts of a SOAP note.
type Section string

const (
	Subjective Section = "subjective"
	Objective  Section = "objective"
	Assessment Section = "assessment"
	Plan       Section = "plan"
)

// AllSections returns the sections in canonical display order.
func AllSections() []Section {
	return []Section{Subjective, Objective, Assessment, Plan}
}

// DefaultObjectiveText is the objective section's default-finding
// placeholder. The other sections use the empty placeholder.
const DefaultObjectiveText = "No objective findings recorded."

// GeneratingMarker is the literal the drafting service emits while a
// section is still being produced. It is never merged into the document.
const GeneratingMarker = "generating"

// Placeholder returns the sentinel "not yet populated" value for a section.
func Placeholder(sec Section) string {
	if sec == Objective {
		return DefaultObjectiveText
	}
	return ""
}

// Sections is the wire shape of a four-section note.
type Sections struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// Get returns the text of the named section.
func (s Sections) Get(sec Section) string {
	switch sec {
	case Subjective:
		return s.Subjective
	case Objective:
		return s.Objective
	case Assessment:
		return s.Assessment
	case Plan:
		return s.Plan
	}
	return ""
}

func (s *Sections) set(sec Section, text string) {
	switch sec {
	case Subjective:
		s.Subjective = text
	case Objective:
		s.Objective = text
	case Assessment:
		s.Assessment = text
	case Plan:
		s.Plan = text
	}
}

// Document is the running note a session renders from. It is owned by the
// session state machine; callers must not share one document between
// concurrent sessions.
type Document struct {
	sections  Sections
	populated map[Section]bool
}

// NewDocument creates a document with every section at its placeholder.
func NewDocument() *Document {
	d := &Document{populated: make(map[Section]bool, 4)}
	for _, sec := range AllSections() {
		d.sections.set(sec, Placeholder(sec))
	}
	return d
}

// Apply merges one incoming partial note onto the document and returns the
// sections whose text actually changed. Each section is considered
// independently: real content replaces whatever is there, while empty text,
// the section's placeholder, and the generating marker are ignored once the
// section has been populated. Applying the same payload twice is a no-op
// the second time.
//
// The changedSections list carried on the wire is advisory only and is not
// consulted here; a client that ignores it converges to the same document.
func (d *Document) Apply(in Sections) []Section {
	var changed []Section

	for _, sec := range AllSections() {
		text := strings.TrimSpace(in.Get(sec))

		if text == "" || text == Placeholder(sec) || strings.EqualFold(text, GeneratingMarker) {
			// Never regress a populated section; unpopulated sections
			// keep their placeholder.
			continue
		}

		if d.sections.Get(sec) != text {
			d.sections.set(sec, text)
			changed = append(changed, sec)
		}
		d.populated[sec] = true
	}

	return changed
}

// SetAll overwrites every section wholesale. Used when a final message's
// payload is adopted as authoritative.
func (d *Document) SetAll(in Sections) {
	for _, sec := range AllSections() {
		text := strings.TrimSpace(in.Get(sec))
		if text == "" {
			text = Placeholder(sec)
		}
		d.sections.set(sec, text)
		d.populated[sec] = text != Placeholder(sec)
	}
}

// Sections returns a copy of the current section texts.
func (d *Document) Sections() Sections {
	return d.sections
}

// Populated reports whether a section holds real content (drives the
// visual-ready flag in rendering).
func (d *Document) Populated(sec Section) bool {
	return d.populated[sec]
}

// Result is the terminal artifact of a dictation session: the final
// transcript plus the final note. Created exactly once per session.
type Result struct {
	Transcript string   `json:"transcript"`
	Sections   Sections `json:"sections"`
}
