package services

import (
	"testing"
)

func TestEncodeNotesWithoutMeta(t *testing.T) {
	// Empty metadata must not inject the sentinel.
	got := EncodeNotes(HoldingMeta{}, "hello")
	if got != "hello" {
		t.Errorf("EncodeNotes({}, hello) = %q, want %q", got, "hello")
	}

	got = EncodeNotes(HoldingMeta{}, "")
	if got != "" {
		t.Errorf("EncodeNotes({}, \"\") = %q, want empty", got)
	}
}

func TestNotesRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		meta  HoldingMeta
		notes string
	}{
		{"grader and grade", HoldingMeta{Grader: "PSA", Grade: "9"}, "pulled from a booster box"},
		{"full metadata", HoldingMeta{Grader: "BGS", Grade: "9.5", Finish: "holo"}, "trade bait"},
		{"empty user notes", HoldingMeta{Grader: "CGC", Grade: "10"}, ""},
		{"multiline user notes", HoldingMeta{Grade: "8"}, "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeNotes(tt.meta, tt.notes)
			meta, notes := DecodeNotes(encoded)
			if meta != tt.meta {
				t.Errorf("meta = %+v, want %+v", meta, tt.meta)
			}
			if notes != tt.notes {
				t.Errorf("notes = %q, want %q", notes, tt.notes)
			}
		})
	}
}

func TestDecodeNotesPlainText(t *testing.T) {
	meta, notes := DecodeNotes("just some notes")
	if !meta.isEmpty() {
		t.Errorf("expected empty meta, got %+v", meta)
	}
	if notes != "just some notes" {
		t.Errorf("notes = %q, want original text", notes)
	}
}

func TestDecodeNotesCorruptMeta(t *testing.T) {
	// A broken metadata block must fail soft: the whole field comes back
	// as user notes, nothing is lost.
	corrupt := notesMetaPrefix + "{not json\nactual notes"
	meta, notes := DecodeNotes(corrupt)
	if !meta.isEmpty() {
		t.Errorf("expected empty meta, got %+v", meta)
	}
	if notes != corrupt {
		t.Errorf("notes = %q, want full original string", notes)
	}
}

func TestDecodeNotesEmpty(t *testing.T) {
	meta, notes := DecodeNotes("")
	if !meta.isEmpty() || notes != "" {
		t.Errorf("DecodeNotes(\"\") = %+v, %q", meta, notes)
	}
}
