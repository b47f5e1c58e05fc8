package llm

import "fmt"

const classificationPrompt = `Classify if this email is about an ACTUAL job application YOU submitted, or just a job recommendation/alert.

Email subject: %s
Email from: %s
Email snippet: %s

Classify as:
- "APPLICATION" - Confirmation you submitted an application, application status update, interview request, offer, rejection
- "NOTIFICATION" - Job recommendations, job alerts, "X is hiring", job board suggestions, newsletters
- "OTHER" - Unrelated emails (CI notifications, SSO updates, etc.)

Return ONLY one word: APPLICATION, NOTIFICATION, or OTHER

Examples:
- "Your application to Google has been received" -> APPLICATION
- "Amazon application: Status update" -> APPLICATION
- "Interview scheduled with Microsoft" -> APPLICATION
- "You might be interested in this Software Engineer role at Meta" -> NOTIFICATION
- "LinkedIn: 10 new jobs match your preferences" -> NOTIFICATION
- "GitHub Actions workflow failed" -> OTHER

Classification:`

const extractionPrompt = `Extract structured information from this job APPLICATION email.

Email:
%s

Return ONLY valid JSON (no markdown, no explanation) with these exact keys:
{"company", "job_title", "status", "application_date", "deadline", "notes", "application_id"}

Rules:
- company: Company name (not the job board like LinkedIn/Indeed)
- job_title: Specific job title applied for
- status: read the whole email and choose ONE of:
  * "Applied" - initial confirmation, "we received your application"
  * "Assessment" - technical test, coding challenge, assignment requested
  * "Interview" - interview invitation, "we'd like to schedule", "next round"
  * "Offer" - job offer, "pleased to offer", "offer letter"
  * "Rejected" - "unfortunately", "not moving forward", "pursue other candidates",
    "position has been filled", "we regret to inform", "will not be proceeding"
- application_date: YYYY-MM-DD, use today (%s) if unknown
- deadline: YYYY-MM-DD or null
- notes: brief summary (location, salary, key details)
- application_id: Application ID / Job ID / Reference number if mentioned, otherwise null
  Examples: "ID: 3104541", "Job ID: JOB-2024-001", "Reference: REF-12345"

Return ONLY the JSON object.`

const summaryPrompt = `You are a career coach analyzing job application activity for the past week.

Given the following data from the past %d days:

**Statistics:**
- Total Applications: %d
- Applied: %d
- Interviews: %d
- Assessments: %d
- Offers: %d
- Rejections: %d

**Recent Applications:**
%s

**Deadlines & Action Items:**
%s

**Task:**
Generate a concise, insightful weekly summary in **5 bullet points** using Markdown format.

**Include:**
1. Weekly statistics and highlights
2. Key updates or notable changes
3. Upcoming deadlines or action items (if any)
4. Progress assessment (e.g. interview conversion)
5. Recommendations for next week

**Format:**
Use bullet points with emojis and be encouraging but realistic.
Keep each point to 1-2 sentences maximum.`

// SummaryInput is the rendered view of weekly stats the summary prompt needs.
type SummaryInput struct {
	Days          int
	Total         int
	Applied       int
	Interview     int
	Assessment    int
	Offer         int
	Rejected      int
	EntriesText   string
	DeadlinesText string
}

func renderSummaryPrompt(in SummaryInput) string {
	return fmt.Sprintf(summaryPrompt,
		in.Days, in.Total, in.Applied, in.Interview, in.Assessment, in.Offer, in.Rejected,
		in.EntriesText, in.DeadlinesText)
}
