package note

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Defaults(t *testing.T) {
	d := NewDocument()

	sections := d.Sections()
	assert.Equal(t, "", sections.Subjective)
	assert.Equal(t, DefaultObjectiveText, sections.Objective)
	assert.Equal(t, "", sections.Assessment)
	assert.Equal(t, "", sections.Plan)

	for _, sec := range AllSections() {
		assert.False(t, d.Populated(sec), "section %s should start unpopulated", sec)
	}
}

func TestDocument_ApplyPopulates(t *testing.T) {
	d := NewDocument()

	changed := d.Apply(Sections{
		Subjective: "Headache x2 days",
		Objective:  DefaultObjectiveText,
		Assessment: "",
		Plan:       "",
	})

	require.Equal(t, []Section{Subjective}, changed)
	assert.Equal(t, "Headache x2 days", d.Sections().Subjective)
	assert.True(t, d.Populated(Subjective))
	assert.False(t, d.Populated(Objective))
	assert.Equal(t, DefaultObjectiveText, d.Sections().Objective)
}

func TestDocument_NeverRevertsToPlaceholder(t *testing.T) {
	d := NewDocument()

	d.Apply(Sections{Subjective: "Patient reports dizziness"})
	// A later update carrying an empty subjective must be ignored.
	changed := d.Apply(Sections{Subjective: "", Assessment: "Vertigo, likely benign"})

	require.Equal(t, []Section{Assessment}, changed)
	assert.Equal(t, "Patient reports dizziness", d.Sections().Subjective)
	assert.True(t, d.Populated(Subjective))

	// And a subsequent real update still lands.
	changed = d.Apply(Sections{Subjective: "Patient reports severe dizziness"})
	require.Equal(t, []Section{Subjective}, changed)
	assert.Equal(t, "Patient reports severe dizziness", d.Sections().Subjective)
}

func TestDocument_IgnoresGeneratingMarker(t *testing.T) {
	d := NewDocument()
	d.Apply(Sections{Plan: "Ibuprofen 400mg PRN"})

	changed := d.Apply(Sections{Plan: "generating"})
	assert.Empty(t, changed)
	assert.Equal(t, "Ibuprofen 400mg PRN", d.Sections().Plan)

	changed = d.Apply(Sections{Plan: "Generating"})
	assert.Empty(t, changed, "marker comparison is case-insensitive")
}

func TestDocument_IgnoresObjectivePlaceholder(t *testing.T) {
	d := NewDocument()
	d.Apply(Sections{Objective: "BP 120/80, afebrile"})

	changed := d.Apply(Sections{Objective: DefaultObjectiveText})
	assert.Empty(t, changed)
	assert.Equal(t, "BP 120/80, afebrile", d.Sections().Objective)
}

func TestDocument_ApplyIsIdempotent(t *testing.T) {
	payload := Sections{
		Subjective: "Cough for one week",
		Objective:  "Lungs clear to auscultation",
		Assessment: "Viral URI",
		Plan:       "Supportive care",
	}

	d := NewDocument()
	first := d.Apply(payload)
	require.Len(t, first, 4)
	after := d.Sections()

	second := d.Apply(payload)
	assert.Empty(t, second, "reapplying the same payload must not report changes")
	assert.Equal(t, after, d.Sections())
}

func TestDocument_SetAllIsAuthoritative(t *testing.T) {
	d := NewDocument()
	d.Apply(Sections{Subjective: "interim content"})

	d.SetAll(Sections{
		Subjective: "Final subjective",
		Objective:  "",
		Assessment: "Final assessment",
		Plan:       "Final plan",
	})

	sections := d.Sections()
	assert.Equal(t, "Final subjective", sections.Subjective)
	assert.Equal(t, DefaultObjectiveText, sections.Objective)
	assert.False(t, d.Populated(Objective))
	assert.True(t, d.Populated(Assessment))
}

func TestTranscriptState_InterimThenFinal(t *testing.T) {
	var tr TranscriptState

	tr.ApplyInterim("patient reports")
	assert.Equal(t, "", tr.Full())
	assert.Equal(t, " patient reports", tr.Display())

	tr.ApplyFinal("Patient reports mild headache.")
	assert.Equal(t, "Patient reports mild headache.", tr.Full())
	assert.Equal(t, "", tr.Interim(), "final wholesale replacement clears interim")
	assert.Equal(t, "Patient reports mild headache.", tr.Display())
}

func TestTranscriptState_InterimNeverPersists(t *testing.T) {
	var tr TranscriptState
	tr.ApplyFinal("First sentence.")
	tr.ApplyInterim("maybe more")

	assert.Equal(t, "First sentence.", tr.Full())
	assert.Equal(t, "First sentence. maybe more", tr.Display())

	tr.ApplyInterim("")
	assert.Equal(t, "First sentence.", tr.Display())
}
