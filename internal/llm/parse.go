package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jobsync/internal"
)

// looseString accepts a JSON string, number or null. Models sometimes emit
// application ids as bare numbers.
type looseString struct {
	Value string
}

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.Value = strings.TrimSpace(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string, number or null, got %s", string(b))
	}
	s.Value = n.String()
	return nil
}

var (
	requiredKeys = []string{"company", "job_title", "status"}
	optionalKeys = []string{"application_date", "deadline", "notes", "application_id"}
)

// ParseRecord validates a model completion into an ApplicationRecord.
// company, job_title and status keys are required; the rest are optional.
// A missing or unparseable application_date falls back to today. Status is
// normalised when it names a known value and kept verbatim otherwise so the
// reconciler can report it.
func ParseRecord(content string, today time.Time) (internal.ApplicationRecord, error) {
	body := stripFences(content)
	if body == "" {
		return internal.ApplicationRecord{}, fmt.Errorf("%w: empty completion", ErrMalformedOutput)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return internal.ApplicationRecord{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return internal.ApplicationRecord{}, fmt.Errorf("%w: missing keys %s", ErrMalformedOutput, strings.Join(missing, ", "))
	}

	fields := map[string]string{}
	for _, key := range append(append([]string(nil), requiredKeys...), optionalKeys...) {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var v looseString
		if err := json.Unmarshal(msg, &v); err != nil {
			return internal.ApplicationRecord{}, fmt.Errorf("%w: %s: %v", ErrMalformedOutput, key, err)
		}
		fields[key] = v.Value
	}

	status, _ := internal.ParseStatus(fields["status"])

	rec := internal.ApplicationRecord{
		Company:       fields["company"],
		JobTitle:      fields["job_title"],
		Status:        status,
		AppliedOn:     parseDate(fields["application_date"], today),
		Notes:         fields["notes"],
		ApplicationID: fields["application_id"],
	}

	if deadline := fields["deadline"]; deadline != "" && !strings.EqualFold(deadline, "null") {
		line := "Deadline: " + deadline
		if rec.Notes == "" {
			rec.Notes = line
		} else if !strings.Contains(rec.Notes, deadline) {
			rec.Notes += "\n" + line
		}
	}
	if strings.EqualFold(rec.ApplicationID, "null") {
		rec.ApplicationID = ""
	}

	return rec, nil
}

func parseDate(raw string, today time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 10 {
		if t, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return t
		}
	}
	y, m, d := today.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// stripFences removes a surrounding ``` or ```json block and any chatter
// around the outermost JSON object.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = strings.TrimSpace(s[4:])
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// ParseCategory reads a one-word classification answer.
func ParseCategory(content string) Category {
	word := strings.ToUpper(strings.TrimSpace(content))
	word = strings.Trim(word, "\"'`.*: \n")
	if fields := strings.Fields(word); len(fields) > 0 {
		word = strings.Trim(fields[0], "\"'`.*:")
	}
	switch Category(word) {
	case CategoryApplication, CategoryNotification:
		return Category(word)
	default:
		return CategoryOther
	}
}
