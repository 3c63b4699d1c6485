package services

import (
	"encoding/json"
	"strings"
)

// notesMetaPrefix marks a metadata block embedded at the start of a holding's
// notes field. Consumers unaware of the convention still read the field as
// plain text, which is why decode must never lose content.
const notesMetaPrefix = "__pv_meta__:"

// HoldingMeta is the structured grading metadata multiplexed into notes.
type HoldingMeta struct {
	Grader string `json:"grader,omitempty"`
	Grade  string `json:"grade,omitempty"`
	Finish string `json:"finish,omitempty"`
}

func (m HoldingMeta) isEmpty() bool {
	return m.Grader == "" && m.Grade == "" && m.Finish == ""
}

// EncodeNotes packs meta and free-text notes into one field. Empty metadata
// yields the user notes verbatim, with no sentinel injected.
func EncodeNotes(meta HoldingMeta, userNotes string) string {
	if meta.isEmpty() {
		return userNotes
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		// HoldingMeta is plain strings; this cannot happen.
		return userNotes
	}
	return notesMetaPrefix + string(payload) + "\n" + userNotes
}

// DecodeNotes splits a notes field into metadata and user text. Any parse
// failure is soft: the whole original string comes back as user notes.
func DecodeNotes(notes string) (HoldingMeta, string) {
	if notes == "" {
		return HoldingMeta{}, ""
	}
	if !strings.HasPrefix(notes, notesMetaPrefix) {
		return HoldingMeta{}, notes
	}

	encoded := notes[len(notesMetaPrefix):]
	userNotes := ""
	if idx := strings.IndexByte(encoded, '\n'); idx >= 0 {
		userNotes = encoded[idx+1:]
		encoded = encoded[:idx]
	}

	raw := strings.TrimSpace(encoded)
	if raw == "" {
		return HoldingMeta{}, userNotes
	}

	var meta HoldingMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return HoldingMeta{}, notes
	}
	return meta, userNotes
}
