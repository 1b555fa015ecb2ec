package prompt

import (
	"strings"

	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
)

// templates are the built-in instructions per judge id. Placeholders:
// {repo_url}, {repo_pdf}, {judge}.
var templates = map[judges.ID]string{
	"receive_data": "Retrieve and summarize the technical structure of this GitHub repository: {repo_url}",
	"business":     "Evaluate the business potential, market fit and monetization options of the project at {repo_url}.",
	"sam":          "As Sam Altman, judge this hackathon project for ambition and scale. Repository: {repo_url} Document: {repo_pdf}",
	"li":           "As Feifei Li, judge this hackathon project for its AI depth and human impact. Repository: {repo_url} Document: {repo_pdf}",
	"ng":           "As Andrew Ng, judge this hackathon project for practical machine learning value. Repository: {repo_url} Document: {repo_pdf}",
	"paul":         "As Paul Graham, judge whether this hackathon project is something people want. Repository: {repo_url} Document: {repo_pdf}",
	"summary":      "Summarize the project described in this document: {repo_pdf}",
	"score":        "Please analyze and score this GitHub repository: {repo_url}",
}

const fallback = "As the {judge} judge, analyze this hackathon submission. Repository: {repo_url} Document: {repo_pdf}"

// Query renders the instruction sent upstream for req.
func Query(j judges.Judge, req analysis.Request) string {
	tmpl := j.Query
	if tmpl == "" {
		tmpl = templates[j.ID]
	}
	if tmpl == "" {
		tmpl = fallback
	}
	r := strings.NewReplacer(
		"{repo_url}", orNone(req.RepositoryURL),
		"{repo_pdf}", orNone(req.DocumentRef),
		"{judge}", j.DisplayName,
	)
	return strings.TrimSpace(r.Replace(tmpl))
}

// Persona is the system prompt for backends that take one.
func Persona(j judges.Judge) string {
	return "You are " + j.DisplayName + ", a judge at a hackathon. " +
		"Give a candid, specific critique in plain prose: strengths, weaknesses, and a verdict. " +
		"If a repository or document is referenced but not provided, reason from what the reference tells you and say so."
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
