package bot

import "testing"

const occID = "3f2c8c1e-9a6b-4d6f-9c1a-2d7f8b3e4a5c"

func TestParsePayloadToggle(t *testing.T) {
	p, err := ParsePayload("toggle:" + occID + ":15:present")
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Action != ActionToggle {
		t.Fatalf("expected action toggle, got %q", p.Action)
	}
	if p.OccurrenceID != occID {
		t.Fatalf("expected occurrence %s, got %s", occID, p.OccurrenceID)
	}
	if p.StudentID != 15 {
		t.Fatalf("expected student 15, got %d", p.StudentID)
	}
	if p.KnownStatus != "present" {
		t.Fatalf("expected known status present, got %q", p.KnownStatus)
	}
}

func TestParsePayloadToggleWithoutStatus(t *testing.T) {
	p, err := ParsePayload("toggle:" + occID + ":15")
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.KnownStatus != "" {
		t.Fatalf("expected empty known status, got %q", p.KnownStatus)
	}
}

func TestParsePayloadFinish(t *testing.T) {
	p, err := ParsePayload("finish:" + occID)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Action != ActionFinish || p.OccurrenceID != occID {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestParsePayloadRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"toggle",
		"toggle:",
		"toggle:" + occID,
		"toggle:" + occID + ":abc:present",
		"finish:" + occID + ":extra",
		"ping:" + occID,
	}
	for _, data := range bad {
		if _, err := ParsePayload(data); err == nil {
			t.Fatalf("expected error for %q", data)
		}
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	p, err := ParsePayload(BuildToggle(occID, 7, false))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.StudentID != 7 || p.KnownStatus != "absent" {
		t.Fatalf("unexpected payload %+v", p)
	}

	p, err = ParsePayload(BuildFinish(occID))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Action != ActionFinish {
		t.Fatalf("expected finish action, got %q", p.Action)
	}
}
