// Package pipeline implements the strict answer mode: a fixed
// decompose / gather / respond / verify sequence with a quality gate. The
// oracle is consulted once per stage with a stage-specific prompt; the
// verifier scores the candidate answer and failed candidates are retried
// with the reported deficiencies as guidance. After the retry budget the
// best-scoring candidate ships, flagged as a quality shortfall.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/printmind/printmind/capability"
	"github.com/printmind/printmind/core"
	"github.com/printmind/printmind/logging"
	"github.com/printmind/printmind/oracle"
)

// Subtask is one unit of the decomposed request.
type Subtask struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// SubtaskPlan is the decomposer's structured output.
type SubtaskPlan struct {
	Goal     string    `json:"goal"`
	Subtasks []Subtask `json:"subtasks"`
}

// QualityScore is the verifier's rubric: three axes, 1 to 10 each.
type QualityScore struct {
	Correctness  int      `json:"correctness"`
	Completeness int      `json:"completeness"`
	Clarity      int      `json:"clarity"`
	Deficiencies []string `json:"deficiencies,omitempty"`
}

// Average returns the arithmetic mean of the three axes.
func (q QualityScore) Average() float64 {
	return float64(q.Correctness+q.Completeness+q.Clarity) / 3.0
}

// StrictResult is the outcome of one strict-mode turn.
type StrictResult struct {
	FinalAnswer string
	Score       QualityScore
	// QualityShortfall is set when no candidate passed the gate and the
	// best attempt shipped anyway.
	QualityShortfall bool
	// Attempts is the number of respond/verify cycles that ran.
	Attempts int
	// Results are the capability results gathered for context.
	Results []core.CapabilityResult
}

// Options configures the pipeline.
type Options struct {
	// MaxRetries bounds additional respond/verify cycles after the first.
	// Default 2.
	MaxRetries int
	// PassThreshold is the minimum average score. Default 7.0.
	PassThreshold float64
	// GatherTopK is the snippet budget per subtask. Default 3.
	GatherTopK int
	// Timeout bounds the whole strict turn. Default 180s.
	Timeout time.Duration
	// Logger receives stage events. Nil disables logging.
	Logger logging.Logger
}

// Pipeline runs strict-mode turns.
type Pipeline struct {
	oracleSvc oracle.Oracle
	invoker   *capability.Invoker
	store     core.SessionStore
	opts      Options
	logger    logging.Logger
}

// New creates a pipeline sharing the engine's invoker and store.
func New(o oracle.Oracle, invoker *capability.Invoker, store core.SessionStore, optFns ...func(*Options)) *Pipeline {
	opts := Options{
		MaxRetries:    2,
		PassThreshold: 7.0,
		GatherTopK:    3,
		Timeout:       180 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.PassThreshold <= 0 {
		opts.PassThreshold = 7.0
	}
	if opts.GatherTopK <= 0 {
		opts.GatherTopK = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}

	return &Pipeline{
		oracleSvc: o,
		invoker:   invoker,
		store:     store,
		opts:      opts,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// ProcessTurnStrict runs the full pipeline for one user message. Message
// persistence mirrors the supervisor: user message first, tool messages as
// context lands, the final answer last.
func (p *Pipeline) ProcessTurnStrict(ctx context.Context, sessionID, userMessage string) (StrictResult, error) {
	sess, err := p.store.GetSession(sessionID)
	if err != nil {
		return StrictResult{}, err
	}
	if sess.Ended() {
		return StrictResult{}, core.ErrSessionEnded
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	if err := p.store.AppendMessage(sessionID, core.NewUserMessage(userMessage)); err != nil {
		return StrictResult{}, fmt.Errorf("persist user message: %w", err)
	}

	plan := p.decompose(ctx, userMessage)
	p.logger.Info("pipeline.decomposed", "session_id", sessionID, "subtasks", len(plan.Subtasks))

	gathered, results := p.gather(ctx, sessionID, plan)

	beginner := false
	if audience, ok := sess.Meta("audience"); ok && audience == "beginner" {
		beginner = true
	}

	var (
		best         StrictResult
		haveBest     bool
		deficiencies []string
	)

	attempts := p.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		answer, err := p.respond(ctx, userMessage, plan, gathered, deficiencies)
		if err != nil {
			if haveBest {
				break
			}
			return StrictResult{}, fmt.Errorf("respond stage: %w", err)
		}

		if beginner {
			if simplified, err := p.simplify(ctx, answer); err == nil && simplified != "" {
				answer = simplified
			}
		}

		score := p.verify(ctx, userMessage, answer)
		p.logger.Info(
			"pipeline.verified",
			"session_id", sessionID,
			"attempt", attempt,
			"average", score.Average(),
		)

		if !haveBest || score.Average() > best.Score.Average() {
			best = StrictResult{FinalAnswer: answer, Score: score, Attempts: attempt}
			haveBest = true
		}
		best.Attempts = attempt

		if score.Average() >= p.opts.PassThreshold {
			best.QualityShortfall = false
			break
		}
		best.QualityShortfall = true
		deficiencies = score.Deficiencies
		if len(deficiencies) == 0 {
			deficiencies = []string{"the previous answer scored below the quality bar; be more precise and complete"}
		}
	}

	best.Results = results

	answerMsg := core.NewAssistantMessage(best.FinalAnswer)
	if err := p.store.AppendMessage(sessionID, answerMsg); err != nil {
		return StrictResult{}, fmt.Errorf("persist answer: %w", err)
	}

	return best, nil
}

const decomposePrompt = `You are a request analyst for a 3D printing assistant.
Break the user's request into retrievable subtasks.

Return JSON only, in this exact shape:
{
  "goal": "one sentence restating the user's goal",
  "subtasks": [
    {"description": "what to find out", "keywords": ["search", "terms"]}
  ]
}

User request: %s`

// decompose asks the oracle for a subtask plan. Unparsable output
// degrades to a single subtask covering the raw request.
func (p *Pipeline) decompose(ctx context.Context, userMessage string) SubtaskPlan {
	raw, err := p.oracleSvc.Complete(ctx, "", fmt.Sprintf(decomposePrompt, userMessage))
	if err == nil {
		var plan SubtaskPlan
		if jsonErr := json.Unmarshal([]byte(extractJSON(raw)), &plan); jsonErr == nil && len(plan.Subtasks) > 0 {
			if plan.Goal == "" {
				plan.Goal = userMessage
			}
			return plan
		}
	}
	if err != nil {
		p.logger.Warn("pipeline.decompose.error", "error", err.Error())
	}

	return SubtaskPlan{
		Goal:     userMessage,
		Subtasks: []Subtask{{Description: userMessage, Keywords: strings.Fields(userMessage)}},
	}
}

// gather runs knowledge_search for each subtask through the shared
// invoker, so every lookup is audited like any other capability call.
func (p *Pipeline) gather(ctx context.Context, sessionID string, plan SubtaskPlan) (string, []core.CapabilityResult) {
	calls := make([]core.CapabilityCall, 0, len(plan.Subtasks))
	for _, sub := range plan.Subtasks {
		query := strings.Join(sub.Keywords, " ")
		if strings.TrimSpace(query) == "" {
			query = sub.Description
		}
		args, err := json.Marshal(map[string]any{"query": query, "top_k": p.opts.GatherTopK})
		if err != nil {
			continue
		}
		calls = append(calls, core.CapabilityCall{
			ID:        core.NewID(),
			Name:      "knowledge_search",
			Arguments: string(args),
		})
	}

	results := p.invoker.InvokeAll(ctx, sessionID, calls)

	var context strings.Builder
	for i, res := range results {
		msg := core.NewToolMessage(res.CallID, res.Name, encodeOutput(res))
		if err := p.store.AppendMessage(sessionID, msg); err != nil {
			p.logger.Error("pipeline.gather.persist.error", "call_id", res.CallID, "error", err.Error())
		}
		if !res.Success {
			continue
		}
		fmt.Fprintf(&context, "[subtask %d: %s]\n%s\n\n", i+1, plan.Subtasks[i].Description, encodeOutput(res))
	}
	return context.String(), results
}

const respondSystem = "You are an expert 3D printing consultant. Give a detailed, " +
	"technically accurate answer with concrete recommendations, temperatures and settings."

// respond produces the candidate answer from the plan and gathered context.
func (p *Pipeline) respond(ctx context.Context, userMessage string, plan SubtaskPlan, gathered string, deficiencies []string) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Goal: %s\n\n", plan.Goal)
	if gathered != "" {
		fmt.Fprintf(&prompt, "Reference material from the knowledge base:\n%s\n", gathered)
	}
	if len(deficiencies) > 0 {
		prompt.WriteString("A previous attempt was rejected. Address these deficiencies:\n")
		for _, d := range deficiencies {
			fmt.Fprintf(&prompt, "- %s\n", d)
		}
		prompt.WriteString("\n")
	}
	fmt.Fprintf(&prompt, "User question: %s", userMessage)

	answer, err := p.oracleSvc.Complete(ctx, respondSystem, prompt.String())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("empty answer from oracle")
	}
	return answer, nil
}

const simplifySystem = "You are an editor who rewrites technical texts for beginners. " +
	"Keep the advice intact but use plain language and concrete examples."

// simplify rewrites the answer for a beginner audience.
func (p *Pipeline) simplify(ctx context.Context, answer string) (string, error) {
	prompt := fmt.Sprintf("Rewrite this answer for someone who just started 3D printing:\n\n%s", answer)
	return p.oracleSvc.Complete(ctx, simplifySystem, prompt)
}

const verifyPrompt = `Rate the quality of the following answer to the question on three criteria, each from 1 to 10.

Question: %s

Answer:
%s

Return JSON only:
{
  "correctness": 1-10,
  "completeness": 1-10,
  "clarity": 1-10,
  "deficiencies": ["specific problems, empty if none"]
}`

// neutralScore is assumed when the verifier's output cannot be parsed;
// it sits at the pass threshold so unparsable verification neither blocks
// a decent answer nor masks the gate entirely.
var neutralScore = QualityScore{Correctness: 7, Completeness: 7, Clarity: 7}

// verify scores the candidate answer.
func (p *Pipeline) verify(ctx context.Context, userMessage, answer string) QualityScore {
	raw, err := p.oracleSvc.Complete(ctx, "", fmt.Sprintf(verifyPrompt, userMessage, answer))
	if err != nil {
		p.logger.Warn("pipeline.verify.error", "error", err.Error())
		return neutralScore
	}

	var score QualityScore
	if err := json.Unmarshal([]byte(extractJSON(raw)), &score); err != nil {
		p.logger.Warn("pipeline.verify.unparsable", "raw_prefix", prefix(raw, 80))
		return neutralScore
	}
	score.Correctness = clampScore(score.Correctness)
	score.Completeness = clampScore(score.Completeness)
	score.Clarity = clampScore(score.Clarity)
	return score
}

func clampScore(v int) int {
	switch {
	case v < 1:
		return 1
	case v > 10:
		return 10
	default:
		return v
	}
}

// extractJSON pulls the outermost JSON object out of free-form oracle
// output (markdown fences, prose around the object).
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func encodeOutput(res core.CapabilityResult) string {
	if !res.Success {
		encoded, _ := json.Marshal(map[string]string{"error": res.ErrorCode, "detail": res.ErrorDetail})
		return string(encoded)
	}
	encoded, err := json.Marshal(res.Output)
	if err != nil {
		return fmt.Sprintf("%v", res.Output)
	}
	return string(encoded)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
