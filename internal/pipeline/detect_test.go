package pipeline

import (
	"strings"
	"testing"
)

func TestDetectApplication(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		text    string
		want    Verdict
	}{
		{name: "confirmation", subject: "Thank you for applying", text: "We received your CV.", want: VerdictApplication},
		{name: "rejection in body", subject: "Your candidacy", text: "Unfortunately we will not move on.", want: VerdictApplication},
		{name: "ci noise", subject: "Run failed: build", text: "The workflow job failed.", want: VerdictNotApplication},
		{name: "other wins over application", subject: "Interview tips newsletter", text: "", want: VerdictNotApplication},
		{name: "job alert", subject: "New jobs for you", text: "Be the first to apply", want: VerdictNotApplication},
		{name: "match digest", subject: "Globex", text: "92% match from Jobright", want: VerdictNotApplication},
		{name: "nothing matches", subject: "Coffee next week?", text: "Let me know.", want: VerdictUnsure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectApplication(tc.subject, tc.text)
			if got.Verdict != tc.want {
				t.Fatalf("verdict=%s (%s %q) want %s", got.Verdict, got.Reason, got.Keyword, tc.want)
			}
		})
	}
}

func TestDetectApplicationOnlyReadsStartOfBody(t *testing.T) {
	text := strings.Repeat("x", detectWindow) + " interview"
	if got := DetectApplication("Hello", text); got.Verdict != VerdictUnsure {
		t.Fatalf("verdict=%s", got.Verdict)
	}
}
