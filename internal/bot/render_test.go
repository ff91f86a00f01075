package bot

import (
	"strings"
	"testing"
	"time"

	"classping/internal/attendance"
)

func testPrompt() Prompt {
	return Prompt{
		OccurrenceID: occID,
		ClubName:     "Chess",
		GroupName:    "Juniors",
		Date:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func testRoster() []attendance.RosterEntry {
	return []attendance.RosterEntry{
		{StudentID: 1, Name: "Alice Ant", Absent: false},
		{StudentID: 2, Name: "Bob Bee", Absent: true},
		{StudentID: 3, Name: "Carol Cat", Absent: false},
	}
}

func TestRenderPromptList(t *testing.T) {
	text, kb := RenderPrompt(testPrompt(), testRoster(), StyleList)

	if !strings.Contains(text, "Chess (Juniors) - 02.03.2026") {
		t.Fatalf("unexpected header in %q", text)
	}
	if len(kb) != 4 {
		t.Fatalf("expected 3 student rows plus finish, got %d rows", len(kb))
	}
	for _, row := range kb[:3] {
		if len(row) != 1 {
			t.Fatalf("list style should have one button per row, got %d", len(row))
		}
	}

	// No explicit ABSENT mark renders as present.
	if !strings.HasPrefix(kb[0][0].Text, "✅") {
		t.Fatalf("unmarked student should render present, got %q", kb[0][0].Text)
	}
	if !strings.HasPrefix(kb[1][0].Text, "❌") {
		t.Fatalf("absent student should render absent, got %q", kb[1][0].Text)
	}
	if !strings.HasSuffix(kb[0][0].CallbackData, ":present") {
		t.Fatalf("present control should carry its rendered state, got %q", kb[0][0].CallbackData)
	}
	if !strings.HasSuffix(kb[1][0].CallbackData, ":absent") {
		t.Fatalf("absent control should carry its rendered state, got %q", kb[1][0].CallbackData)
	}
	if kb[3][0].CallbackData != BuildFinish(occID) {
		t.Fatalf("last row should be the finish control, got %q", kb[3][0].CallbackData)
	}
}

func TestRenderPromptGrid(t *testing.T) {
	_, kb := RenderPrompt(testPrompt(), testRoster(), StyleGrid)

	// Two students per row, the odd one alone, then finish.
	if len(kb) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(kb))
	}
	if len(kb[0]) != 2 || len(kb[1]) != 1 || len(kb[2]) != 1 {
		t.Fatalf("unexpected grid shape: %d/%d/%d", len(kb[0]), len(kb[1]), len(kb[2]))
	}
}

func TestRenderPromptNote(t *testing.T) {
	p := testPrompt()
	p.Note = "Bring your own boards"
	text, _ := RenderPrompt(p, testRoster(), StyleList)
	if !strings.Contains(text, "Bring your own boards") {
		t.Fatalf("expected custom note in %q", text)
	}
}

func TestRenderPromptWithoutClub(t *testing.T) {
	p := testPrompt()
	p.ClubName = ""
	p.GroupName = ""
	text, _ := RenderPrompt(p, testRoster(), StyleList)
	if !strings.Contains(text, "Lesson - 02.03.2026") {
		t.Fatalf("expected fallback header in %q", text)
	}
}

func TestRenderCompletion(t *testing.T) {
	marks := []attendance.Mark{
		{StudentID: 1, StudentName: "Alice Ant", Status: attendance.StatusPresent},
		{StudentID: 2, StudentName: "Bob Bee", Status: attendance.StatusAbsent},
		{StudentID: 3, StudentName: "Carol Cat", Status: attendance.StatusPresent},
	}
	text := RenderCompletion(testPrompt(), marks)

	for _, want := range []string{
		"• Present: 2",
		"• Absent: 1",
		"• Total: 3",
		"❌ Absent:",
		"• Bob Bee",
		"✅ Present:",
		"• Alice Ant",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in completion:\n%s", want, text)
		}
	}
}

func TestRenderCompletionAllPresent(t *testing.T) {
	marks := []attendance.Mark{
		{StudentID: 1, StudentName: "Alice Ant", Status: attendance.StatusPresent},
	}
	text := RenderCompletion(testPrompt(), marks)
	if strings.Contains(text, "❌ Absent:") {
		t.Fatalf("no absent section expected:\n%s", text)
	}
	if !strings.Contains(text, "• Absent: 0") {
		t.Fatalf("expected zero absent count:\n%s", text)
	}
}
