// Package bot runs the chat side of attendance collection: the dispatcher
// that delivers due prompts and the handler that applies interaction events.
package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Actions carried in callback payloads.
const (
	ActionToggle = "toggle"
	ActionFinish = "finish"
)

// Payload is the decoded callback data of one interaction event. For
// toggles, KnownStatus is the state the tapping client was looking at.
type Payload struct {
	Action       string
	OccurrenceID string
	StudentID    int64
	KnownStatus  string
}

// BuildToggle encodes a student control. The rendered status rides along so
// the handler can flip relative to what the teacher saw.
func BuildToggle(occurrenceID string, studentID int64, present bool) string {
	status := "present"
	if !present {
		status = "absent"
	}
	return fmt.Sprintf("%s:%s:%d:%s", ActionToggle, occurrenceID, studentID, status)
}

// BuildFinish encodes the finish control.
func BuildFinish(occurrenceID string) string {
	return ActionFinish + ":" + occurrenceID
}

// ParsePayload decodes callback data of the form
// action:occurrence_id[:student_id[:known_status]].
func ParsePayload(data string) (Payload, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Payload{}, fmt.Errorf("malformed payload %q", data)
	}
	p := Payload{Action: parts[0], OccurrenceID: parts[1]}
	switch p.Action {
	case ActionFinish:
		if len(parts) != 2 {
			return Payload{}, fmt.Errorf("finish payload has extra fields: %q", data)
		}
		return p, nil
	case ActionToggle:
		if len(parts) < 3 {
			return Payload{}, fmt.Errorf("toggle payload missing student: %q", data)
		}
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Payload{}, fmt.Errorf("bad student id in payload %q: %w", data, err)
		}
		p.StudentID = id
		if len(parts) > 3 {
			p.KnownStatus = parts[3]
		}
		return p, nil
	default:
		return Payload{}, fmt.Errorf("unknown action %q", parts[0])
	}
}
