package notegen

import (
	"testing"
)

func TestParseSections_LabeledHeaders(t *testing.T) {
	text := `Subjective: Patient reports mild headache for two days.
Objective: BP 120/80. Afebrile. No focal deficits.
Assessment: Tension headache.
Plan: Ibuprofen 400mg PRN. Follow up in two weeks.`

	sections := ParseSections(text)

	if sections.Subjective != "Patient reports mild headache for two days." {
		t.Errorf("unexpected subjective: %q", sections.Subjective)
	}
	if sections.Objective != "BP 120/80. Afebrile. No focal deficits." {
		t.Errorf("unexpected objective: %q", sections.Objective)
	}
	if sections.Assessment != "Tension headache." {
		t.Errorf("unexpected assessment: %q", sections.Assessment)
	}
	if sections.Plan != "Ibuprofen 400mg PRN. Follow up in two weeks." {
		t.Errorf("unexpected plan: %q", sections.Plan)
	}
}

func TestParseSections_MarkdownHeadersAndMultiline(t *testing.T) {
	text := `## Subjective (S)
Patient complains of cough.
Worse at night.

## Plan (P)
Supportive care.`

	sections := ParseSections(text)

	if sections.Subjective != "Patient complains of cough. Worse at night." {
		t.Errorf("unexpected subjective: %q", sections.Subjective)
	}
	if sections.Plan != "Supportive care." {
		t.Errorf("unexpected plan: %q", sections.Plan)
	}
	if sections.Objective != "" {
		t.Errorf("expected empty objective, got %q", sections.Objective)
	}
	if sections.Assessment != "" {
		t.Errorf("expected empty assessment, got %q", sections.Assessment)
	}
}

func TestParseSections_ParagraphFallback(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph.\n\nFourth paragraph."

	sections := ParseSections(text)

	if sections.Subjective != "First paragraph." {
		t.Errorf("unexpected subjective: %q", sections.Subjective)
	}
	if sections.Objective != "Second paragraph." {
		t.Errorf("unexpected objective: %q", sections.Objective)
	}
	if sections.Assessment != "Third paragraph." {
		t.Errorf("unexpected assessment: %q", sections.Assessment)
	}
	if sections.Plan != "Fourth paragraph." {
		t.Errorf("unexpected plan: %q", sections.Plan)
	}
}

func TestParseSections_UnstructuredBlob(t *testing.T) {
	sections := ParseSections("just a wall of text with no structure")

	if sections.Subjective != "just a wall of text with no structure" {
		t.Errorf("unexpected subjective: %q", sections.Subjective)
	}
	if sections.Plan != "" {
		t.Errorf("expected empty plan, got %q", sections.Plan)
	}
}

func TestParseSections_Empty(t *testing.T) {
	sections := ParseSections("")
	if sections != (ParseSections("")) {
		t.Error("parsing empty text should be deterministic")
	}
	if sections.Subjective != "" || sections.Objective != "" {
		t.Errorf("expected all sections empty, got %+v", sections)
	}
}
