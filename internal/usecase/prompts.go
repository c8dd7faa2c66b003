package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

type prompt struct {
	System    string
	User      string
	MaxTokens int
}

const jsonOnly = "Respond with a single JSON object only. Do not add explanations or markdown outside the JSON."

func asJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func careerPlanPrompt(answers map[string]any) prompt {
	return prompt{
		System: "You are an experienced career counselor. Analyse questionnaire answers and produce a practical, encouraging career plan. " + jsonOnly,
		User: `Questionnaire answers:
` + asJSON(answers) + `

Return JSON with this shape:
{
  "career_type": "short label describing the person's career type",
  "summary": "3-4 sentence overview",
  "strengths": ["..."],
  "weaknesses": ["..."],
  "recommended_careers": [{"title": "...", "match": 0-100, "reason": "..."}],
  "action_plan": [{"period": "e.g. first 3 months", "action": "..."}],
  "skills_to_develop": ["..."]
}
Recommend 3 to 5 careers ordered by match.`,
		MaxTokens: 2000,
	}
}

func agentAnalysisPrompt(d domain.Diagnosis) prompt {
	return prompt{
		System: "You are a senior recruiter at a staffing agency. Evaluate the candidate from the hiring market's point of view. " + jsonOnly,
		User: `Questionnaire answers:
` + asJSON(d.Answers) + `

Career diagnosis:
` + asJSON(d.Result) + `

Return JSON with this shape:
{
  "market_value": "how the market would value this candidate and why",
  "salary_range": "realistic annual salary range",
  "recommended_industries": ["..."],
  "job_opportunities": ["concrete job titles to apply for"],
  "advice": "specific advice for the job search"
}`,
		MaxTokens: 1500,
	}
}

func chatSystemPrompt(d *domain.Diagnosis) string {
	var b strings.Builder
	b.WriteString("You are a friendly, concise career advisor. Give concrete, actionable advice. Answer in the language the user writes in. Keep answers under 300 words unless asked for more.")
	if d != nil {
		b.WriteString("\n\nThe user completed a career diagnosis with this result:\n")
		b.WriteString(asJSON(d.Result))
		if d.AgentAnalysis != nil {
			b.WriteString("\n\nRecruiter view:\n")
			b.WriteString(asJSON(d.AgentAnalysis))
		}
	}
	return b.String()
}

func interviewQuestionsPrompt(s domain.InterviewSettings, p domain.Persona, d *domain.Diagnosis) prompt {
	ctx := ""
	if d != nil {
		ctx = "\n\nCandidate background (career diagnosis):\n" + asJSON(d.Result)
	}
	return prompt{
		System: fmt.Sprintf("You are %s, a %s. Your interviewing style is %s. %s You are preparing a %s %s interview. %s",
			p.Name, p.Role, p.Style, p.Description, s.Difficulty, s.InterviewType, jsonOnly),
		User: fmt.Sprintf(`Prepare exactly %d interview questions for a %s position in the %s industry.%s

Return JSON with this shape:
{"questions": [{"question": "...", "intent": "what the question is meant to assess"}]}`,
			s.QuestionCount, s.Position, s.Industry, ctx),
		MaxTokens: 1500,
	}
}

func answerEvaluationPrompt(sess domain.InterviewSession, q domain.InterviewQuestion, answer string) prompt {
	p := sess.Persona
	return prompt{
		System: fmt.Sprintf("You are %s, a %s, evaluating a candidate's answer in a %s %s interview. Be fair and specific. %s",
			p.Name, p.Role, sess.Settings.Difficulty, sess.Settings.InterviewType, jsonOnly),
		User: fmt.Sprintf(`Position: %s (%s industry)
Question: %s
Intent of the question: %s
Candidate answer: %s

Return JSON with this shape:
{
  "score": 0-100,
  "feedback": "2-3 sentences",
  "strengths": ["..."],
  "improvements": ["..."],
  "improved_answer": "a stronger version of the candidate's answer"
}`, sess.Settings.Position, sess.Settings.Industry, q.Question, q.Intent, answer),
		MaxTokens: 1200,
	}
}

func interviewSummaryPrompt(sess domain.InterviewSession) prompt {
	type qa struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Score    int    `json:"score"`
		Feedback string `json:"feedback"`
	}
	items := make([]qa, 0, len(sess.Answers))
	for _, a := range sess.Answers {
		items = append(items, qa{Question: a.Question, Answer: a.Answer, Score: a.Evaluation.Score, Feedback: a.Evaluation.Feedback})
	}
	return prompt{
		System: fmt.Sprintf("You are %s, a %s, writing the final assessment of a mock interview. %s", sess.Persona.Name, sess.Persona.Role, jsonOnly),
		User: fmt.Sprintf(`Position: %s (%s industry), %s interview, difficulty %s.
Answered questions:
%s

Return JSON with this shape:
{
  "overall_score": 0-100,
  "summary": "overall assessment",
  "strengths": ["..."],
  "improvements": ["..."],
  "verdict": "one of: strong hire, hire, borderline, no hire"
}`, sess.Settings.Position, sess.Settings.Industry, sess.Settings.InterviewType, sess.Settings.Difficulty, asJSON(items)),
		MaxTokens: 1200,
	}
}

func documentPrompt(req ResumeRequest, d *domain.Diagnosis) prompt {
	kind := "a one-page resume"
	if req.Format == FormatCV {
		kind = "a detailed curriculum vitae"
	}
	ctx := ""
	if d != nil {
		ctx = "\n\nCareer diagnosis to align the document with:\n" + asJSON(d.Result)
	}
	return prompt{
		System: "You are a professional resume writer. Write truthful, polished documents using only the facts provided; never invent employers, dates or degrees. " + jsonOnly,
		User: fmt.Sprintf(`Write %s from this profile:
%s%s

Return JSON with this shape:
{
  "title": "document title",
  "headline": "one-line professional headline",
  "sections": [{"heading": "...", "body": "paragraph text or empty", "items": ["bullet", "..."]}]
}`, kind, asJSON(req.Profile), ctx),
		MaxTokens: 2500,
	}
}
