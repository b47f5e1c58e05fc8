package pipeline

import (
	"strings"

	"jobsync/internal/util"
)

type Verdict string

const (
	VerdictApplication    Verdict = "application"
	VerdictNotApplication Verdict = "not_application"
	VerdictUnsure         Verdict = "unsure"
)

type DetectResult struct {
	Verdict Verdict
	Keyword string
	Reason  string
}

// detectWindow is how much of the body the keyword rules look at.
const detectWindow = 500

var otherKeywords = []string{
	"github actions", "workflow", "run failed", "federating", "sso",
	"identity provider", "newsletter", "community update",
}

var applicationPatterns = []string{
	"application received", "application submitted", "application status",
	"interview", "offer", "unfortunately", "not moving forward",
	"thank you for applying", "your application to", "application for",
	"progress with other candidates", "pursue other candidates", "not selected",
	"position has been filled", "we regret",
}

var notificationKeywords = []string{
	"job alert", "new jobs", "job recommendation", "might be interested",
	"top matches", "jobs match", "hiring for", "has new", "jobs open",
	"be the first to apply", "just posted", "% match from jobright",
	"jobs like you", "job opportunities", "recommended for you",
}

// DetectApplication runs the keyword rules over the subject and the start of
// the body. Rules are checked in order: other, application, notification.
// Unsure results go to the model.
func DetectApplication(subject, text string) DetectResult {
	haystack := strings.ToLower(subject + " " + util.Truncate(text, detectWindow))

	if kw, ok := firstMatch(haystack, otherKeywords); ok {
		return DetectResult{Verdict: VerdictNotApplication, Keyword: kw, Reason: "rules_other"}
	}
	if kw, ok := firstMatch(haystack, applicationPatterns); ok {
		return DetectResult{Verdict: VerdictApplication, Keyword: kw, Reason: "rules_application"}
	}
	if kw, ok := firstMatch(haystack, notificationKeywords); ok {
		return DetectResult{Verdict: VerdictNotApplication, Keyword: kw, Reason: "rules_notification"}
	}
	return DetectResult{Verdict: VerdictUnsure, Reason: "rules_inconclusive"}
}

func firstMatch(haystack string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return kw, true
		}
	}
	return "", false
}
