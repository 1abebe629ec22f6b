// Package chat orchestrates the question-answering flow: input guardrails,
// retrieval, completion, and output guardrails, with a telemetry-backed
// fallback when the model is unreachable.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/aeolus-energy/turbobot/engine/guard"
	"github.com/aeolus-energy/turbobot/engine/rag"
	"github.com/aeolus-energy/turbobot/engine/telemetry"
	"github.com/aeolus-energy/turbobot/pkg/fn"
	"github.com/aeolus-energy/turbobot/pkg/resilience"
)

// Completer generates text from a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Recorder persists conversation turns and serves back recent context for
// prompt building. The chat flow treats recording as best effort and never
// fails a request over it.
type Recorder interface {
	AddMessage(sessionID, role, content string) error
	RecentContext(sessionID string, maxMessages int) string
}

// historyLimit is how many recent turns are replayed into the prompt.
const historyLimit = 10

// Request is one user turn.
type Request struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k,omitempty"`
}

// Response is the structured outcome of one turn, including guardrail
// metadata for the caller.
type Response struct {
	SessionID               string    `json:"session_id"`
	Answer                  string    `json:"answer"`
	Rejected                bool      `json:"rejected"`
	RejectionKind           string    `json:"rejection_kind,omitempty"`
	RejectionReason         string    `json:"rejection_reason,omitempty"`
	OffTopic                bool      `json:"off_topic"`
	TopicConfidence         float64   `json:"topic_confidence"`
	RAGUsed                 bool      `json:"rag_used"`
	Fallback                bool      `json:"fallback"`
	QualityScore            float64   `json:"quality_score"`
	HallucinationDetected   bool      `json:"hallucination_detected"`
	HallucinationConfidence float64   `json:"hallucination_confidence,omitempty"`
	Warnings                []string  `json:"warnings,omitempty"`
	Model                   string    `json:"model,omitempty"`
	Timestamp               time.Time `json:"timestamp"`
}

// Service wires guardrails, retrieval, the completion backend, and telemetry
// into the chat pipeline.
type Service struct {
	filter    *guard.Filter
	rag       *rag.Manager
	completer Completer
	snapshot  *telemetry.Snapshot
	recorder  Recorder
	breaker   *resilience.Breaker
	pipeline  fn.Stage[*exchange, *exchange]
	logger    *slog.Logger
}

// NewService assembles the chat pipeline. recorder may be nil.
func NewService(filter *guard.Filter, mgr *rag.Manager, completer Completer, snapshot *telemetry.Snapshot, recorder Recorder, logger *slog.Logger) *Service {
	s := &Service{
		filter:    filter,
		rag:       mgr,
		completer: completer,
		snapshot:  snapshot,
		recorder:  recorder,
		breaker: resilience.NewBreaker(resilience.BreakerOpts{
			FailThreshold: 3,
			Timeout:       30 * time.Second,
		}),
		logger: logger,
	}
	s.pipeline = fn.Pipeline(
		fn.TracedStage("chat.guard_input", s.guardInputStage()),
		fn.TracedStage("chat.retrieve", s.retrieveStage()),
		fn.TracedStage("chat.generate", s.generateStage()),
		fn.TracedStage("chat.guard_output", s.guardOutputStage()),
	)
	return s
}

// exchange carries one turn through the pipeline stages. done marks a turn
// that already has its final answer; later stages pass it through untouched.
type exchange struct {
	req  Request
	resp Response

	question   string
	ragContext string
	raw        string
	done       bool
}

// Ask runs one user turn through the full pipeline. It returns an error only
// on context cancellation; guardrail rejections and completion failures come
// back as structured responses.
func (s *Service) Ask(ctx context.Context, req Request) (Response, error) {
	ex := &exchange{
		req: req,
		resp: Response{
			SessionID: req.SessionID,
			Timestamp: time.Now().UTC(),
		},
	}

	out, err := s.pipeline(ctx, ex).Unwrap()
	if err != nil {
		return Response{}, err
	}

	s.record(req.SessionID, req.Question, out.resp)
	return out.resp, nil
}

func (s *Service) guardInputStage() fn.Stage[*exchange, *exchange] {
	return func(ctx context.Context, ex *exchange) fn.Result[*exchange] {
		verdict, topic := s.filter.FilterInput(ex.req.Question)
		if !verdict.Valid {
			ex.resp.Rejected = true
			ex.resp.RejectionKind = verdict.Rejection.String()
			ex.resp.RejectionReason = verdict.Error
			ex.resp.Answer = verdict.Error
			ex.resp.Warnings = verdict.Warnings
			ex.done = true
			return fn.Ok(ex)
		}
		ex.question = verdict.Sanitized
		ex.resp.Warnings = verdict.Warnings
		ex.resp.TopicConfidence = topic.Confidence

		if !topic.OnTopic {
			ex.resp.OffTopic = true
			ex.resp.Answer = s.filter.OffTopicResponse(topic)
			ex.resp.QualityScore = 0.5
			ex.done = true
		}
		return fn.Ok(ex)
	}
}

func (s *Service) retrieveStage() fn.Stage[*exchange, *exchange] {
	return func(ctx context.Context, ex *exchange) fn.Result[*exchange] {
		if ex.done {
			return fn.Ok(ex)
		}
		topK := ex.req.TopK
		if topK <= 0 {
			topK = rag.DefaultTopK
		}
		ex.ragContext = s.rag.RetrieveContext(ex.question, topK, rag.DefaultMinScore)
		ex.resp.RAGUsed = ex.ragContext != ""
		return fn.Ok(ex)
	}
}

func (s *Service) generateStage() fn.Stage[*exchange, *exchange] {
	return func(ctx context.Context, ex *exchange) fn.Result[*exchange] {
		if ex.done {
			return fn.Ok(ex)
		}
		prompt := buildPrompt(ex.question, ex.ragContext, s.history(ex.req.SessionID), s.latest(), s.trend())

		result := fn.Retry(ctx, fn.RetryOpts{
			MaxAttempts: 2,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Jitter:      true,
		}, func(ctx context.Context) fn.Result[string] {
			return resilience.CallResult(s.breaker, ctx, func(ctx context.Context) fn.Result[string] {
				return fn.FromPair(s.completer.Complete(ctx, prompt))
			})
		})

		raw, err := result.Unwrap()
		if err != nil {
			if ctx.Err() != nil {
				return fn.Err[*exchange](ctx.Err())
			}
			s.logger.Warn("completion failed, serving telemetry fallback", "error", err)
			ex.resp.Fallback = true
			ex.resp.RAGUsed = false
			ex.resp.Answer = fallbackResponse(s.latest())
			ex.resp.QualityScore = 0.5
			ex.done = true
			return fn.Ok(ex)
		}
		ex.raw = raw
		ex.resp.Model = s.completer.Model()
		return fn.Ok(ex)
	}
}

func (s *Service) guardOutputStage() fn.Stage[*exchange, *exchange] {
	return func(ctx context.Context, ex *exchange) fn.Result[*exchange] {
		if ex.done {
			return fn.Ok(ex)
		}
		verdict := s.filter.FilterOutput(ex.raw, ex.ragContext)
		if !verdict.Valid {
			s.logger.Warn("generated response rejected, serving telemetry fallback",
				"rejection", verdict.Rejection.String())
			ex.resp.Fallback = true
			ex.resp.RAGUsed = false
			ex.resp.Answer = fallbackResponse(s.latest())
			ex.resp.QualityScore = 0.5
			ex.resp.Warnings = append(ex.resp.Warnings, verdict.Error)
			return fn.Ok(ex)
		}
		ex.resp.Answer = verdict.Sanitized
		ex.resp.QualityScore = verdict.QualityScore
		ex.resp.HallucinationDetected = verdict.HallucinationDetected
		ex.resp.HallucinationConfidence = verdict.HallucinationConfidence
		ex.resp.Warnings = append(ex.resp.Warnings, verdict.Warnings...)
		return fn.Ok(ex)
	}
}

func (s *Service) history(sessionID string) string {
	if s.recorder == nil || sessionID == "" {
		return ""
	}
	return s.recorder.RecentContext(sessionID, historyLimit)
}

func (s *Service) trend() telemetry.TrendStats {
	if s.snapshot == nil {
		return telemetry.TrendStats{}
	}
	return s.snapshot.Trend()
}

func (s *Service) latest() *telemetry.Reading {
	if s.snapshot == nil {
		return nil
	}
	r, ok := s.snapshot.Latest()
	if !ok {
		return nil
	}
	return &r
}

func (s *Service) record(sessionID, question string, resp Response) {
	if s.recorder == nil || sessionID == "" {
		return
	}
	if err := s.recorder.AddMessage(sessionID, "user", question); err != nil {
		s.logger.Warn("record user message", "error", err)
		return
	}
	if err := s.recorder.AddMessage(sessionID, "assistant", resp.Answer); err != nil {
		s.logger.Warn("record assistant message", "error", err)
	}
}
