package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"classping/internal/attendance"
	"classping/internal/chat"
	"classping/internal/lesson"
	"classping/internal/schedule"
)

// Keyboard layouts. List puts one student per row; grid packs two, which
// reads better for large groups.
const (
	StyleList = "list"
	StyleGrid = "grid"
)

// Prompt carries everything shown in an attendance message.
type Prompt struct {
	OccurrenceID string
	ClubName     string
	GroupName    string
	Date         time.Time
	Note         string
}

// LoadPrompt assembles the display context for an occurrence.
func LoadPrompt(ctx context.Context, repo *schedule.Repository, o *lesson.Occurrence) (Prompt, error) {
	p := Prompt{OccurrenceID: o.ID, Date: o.Date}
	s, err := repo.GetSchedule(ctx, o.ScheduleID)
	if err != nil {
		return Prompt{}, err
	}
	if s != nil {
		p.GroupName = s.GroupName
	}
	if o.ClubID != nil {
		club, err := repo.GetClub(ctx, *o.ClubID)
		if err != nil {
			return Prompt{}, err
		}
		if club != nil {
			p.ClubName = club.Name
		}
	}
	rule, err := repo.GetRuleBySchedule(ctx, o.ScheduleID)
	if err != nil {
		return Prompt{}, err
	}
	if rule != nil && rule.Message != nil {
		p.Note = *rule.Message
	}
	return p, nil
}

func headerName(p Prompt) string {
	name := p.ClubName
	if name == "" {
		name = "Lesson"
	}
	if p.GroupName != "" {
		name += " (" + p.GroupName + ")"
	}
	return name
}

// RenderPrompt builds the message text and control grid for an occurrence.
func RenderPrompt(p Prompt, roster []attendance.RosterEntry, style string) (string, chat.Keyboard) {
	text := fmt.Sprintf("📚 %s - %s", headerName(p), p.Date.Format("02.01.2006"))
	if p.Note != "" {
		text += "\n\n" + p.Note
	}
	text += "\n\n👆 Tap a student to change their status"

	buttons := make([]chat.InlineButton, 0, len(roster))
	for _, st := range roster {
		buttons = append(buttons, studentButton(p.OccurrenceID, st))
	}

	var kb chat.Keyboard
	switch style {
	case StyleGrid:
		for i := 0; i < len(buttons); i += 2 {
			end := i + 2
			if end > len(buttons) {
				end = len(buttons)
			}
			kb = append(kb, buttons[i:end])
		}
	default:
		for _, b := range buttons {
			kb = append(kb, []chat.InlineButton{b})
		}
	}
	kb = append(kb, []chat.InlineButton{{
		Text:         "🏁 Finish attendance",
		CallbackData: BuildFinish(p.OccurrenceID),
	}})
	return text, kb
}

// studentButton renders one control. A student shows as absent only when an
// explicit ABSENT mark exists; no mark means present.
func studentButton(occurrenceID string, st attendance.RosterEntry) chat.InlineButton {
	if st.Absent {
		return chat.InlineButton{
			Text:         "❌ " + st.Name,
			CallbackData: BuildToggle(occurrenceID, st.StudentID, false),
		}
	}
	return chat.InlineButton{
		Text:         "✅ " + st.Name,
		CallbackData: BuildToggle(occurrenceID, st.StudentID, true),
	}
}

// RenderCompletion builds the summary that replaces the prompt after finish.
func RenderCompletion(p Prompt, marks []attendance.Mark) string {
	var present, absent []string
	for _, m := range marks {
		if m.Status == attendance.StatusAbsent {
			absent = append(absent, m.StudentName)
		} else {
			present = append(present, m.StudentName)
		}
	}

	var b strings.Builder
	b.WriteString("✅ Attendance saved!\n\n")
	fmt.Fprintf(&b, "📚 %s - %s\n\n", headerName(p), p.Date.Format("02.01.2006"))
	b.WriteString("📊 Results:\n")
	fmt.Fprintf(&b, "• Present: %d\n", len(present))
	fmt.Fprintf(&b, "• Absent: %d\n", len(absent))
	fmt.Fprintf(&b, "• Total: %d\n", len(marks))
	if len(absent) > 0 {
		b.WriteString("\n❌ Absent:\n")
		for _, name := range absent {
			fmt.Fprintf(&b, "• %s\n", name)
		}
	}
	if len(present) > 0 {
		b.WriteString("\n✅ Present:\n")
		for _, name := range present {
			fmt.Fprintf(&b, "• %s\n", name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
