// Package assistant orchestrates one chat turn: classification, the
// slot-filling dialogue, product ranking, and bounded context assembly
// for the language-model capability.
package assistant

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shopmate-labs/shopmate/internal/dialog"
	"github.com/shopmate-labs/shopmate/internal/domain"
	"github.com/shopmate-labs/shopmate/internal/intent"
	"github.com/shopmate-labs/shopmate/internal/provider"
	"github.com/shopmate-labs/shopmate/internal/relevance"
	"github.com/shopmate-labs/shopmate/internal/store"
)

// Source is a knowledge citation attached to a reply.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Reply is the assistant's answer for one turn.
type Reply struct {
	Message                string
	Products               []relevance.Match
	Sources                []Source
	Confidence             float64
	ShouldStartProductFlow bool
	Order                  *domain.Order
	Timeline               []domain.OrderEvent
}

// Config tunes the per-turn pipeline.
type Config struct {
	ProviderTimeout time.Duration
	ProductTopK     int
	Assembler       AssemblerConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ProviderTimeout: 30 * time.Second,
		ProductTopK:     relevance.DefaultTopK,
		Assembler:       DefaultAssemblerConfig(),
	}
}

// Service handles chat turns. One instance serves all sessions;
// per-session serialization is enforced internally.
type Service struct {
	cfg        Config
	repo       store.Repository
	classifier *intent.Classifier
	machine    *dialog.Machine
	engine     *relevance.Engine
	assembler  *Assembler
	provider   provider.Provider
	locks      *lockManager
	translog   TranscriptLogger
}

// NewService wires the per-turn pipeline. The provider handle is
// explicit; there is no package-level current provider.
func NewService(cfg Config, repo store.Repository, p provider.Provider, engine *relevance.Engine, assembler *Assembler, translog TranscriptLogger) *Service {
	if translog == nil {
		translog = noopTranscriptLogger{}
	}
	return &Service{
		cfg:        cfg,
		repo:       repo,
		classifier: intent.NewClassifier(p),
		machine:    dialog.NewMachine(repo),
		engine:     engine,
		assembler:  assembler,
		provider:   p,
		locks:      newLockManager(),
		translog:   translog,
	}
}

// HandleMessage processes one inbound utterance for a session and
// returns the assistant's reply. Requests for the same session are
// serialized; a concurrent request queues behind the in-flight one.
func (s *Service) HandleMessage(ctx context.Context, sessionID, content string) (*Reply, error) {
	content = strings.TrimSpace(content)
	if sessionID == "" || content == "" {
		return nil, errors.Wrap(ErrValidation, "sessionId and content are required")
	}

	release := s.locks.acquire(sessionID)
	defer release()

	sess, err := s.repo.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}

	// One id per turn correlates the inbound and outbound transcript
	// events.
	turnID := uuid.NewString()

	if err := s.repo.AppendMessage(ctx, sessionID, domain.Message{
		Role:    domain.RoleUser,
		Content: content,
	}); err != nil {
		return nil, errors.Wrap(err, "append user message")
	}
	s.logTurn(sessionID, turnID, "inbound", "user_message", content)

	reply := s.processTurn(ctx, sess, content)

	if err := s.repo.AppendMessage(ctx, sessionID, domain.Message{
		Role:    domain.RoleAssistant,
		Content: reply.Message,
	}); err != nil {
		return nil, errors.Wrap(err, "append assistant message")
	}
	s.logTurn(sessionID, turnID, "outbound", "assistant_message", reply.Message)

	return reply, nil
}

// processTurn runs the classification/dialogue/RAG pipeline. It never
// returns an error: every failure is converted to a safe reply and the
// session is left in a consistent state.
func (s *Service) processTurn(ctx context.Context, sess *domain.Session, content string) *Reply {
	// Mid-dialogue answers go straight to the state machine.
	if sess.FlowState != domain.FlowIdle {
		out, err := s.machine.Advance(ctx, sess, content)
		if err != nil {
			slog.Error("dialogue transition failed, state rolled back",
				"session_id", sess.ID, "state", sess.FlowState, "error", err)
			return &Reply{Message: RetryMessage}
		}
		return s.replyFromOutcome(out)
	}

	result := s.classify(ctx, sess, content)

	switch {
	case result.Intent == intent.IntentOrderTracking:
		return s.startFlow(ctx, sess, s.machine.StartTrackingFlow)

	case wantsRefinement(content) && sess.Slots.Category != "" && sess.Slots.Budget != "":
		out, err := s.machine.RequestRefinement(ctx, sess)
		if err != nil {
			slog.Error("refinement request failed", "session_id", sess.ID, "error", err)
			return &Reply{Message: RetryMessage}
		}
		return s.replyFromOutcome(out)

	case result.Intent == intent.IntentProductSearch:
		return s.startProductSearch(ctx, sess, content, result)

	case result.ShouldStartProductFlow:
		return s.startFlow(ctx, sess, s.machine.StartProductFlow)
	}

	return s.ragReply(ctx, sess, content, result)
}

func (s *Service) classify(ctx context.Context, sess *domain.Session, content string) intent.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	return s.classifier.Classify(ctx, content, sess.FlowState != domain.FlowIdle)
}

// startProductSearch handles a product_search utterance from idle. A
// derivable category seeds the slot and the dialogue resumes at the
// budget question; products are never surfaced this early.
func (s *Service) startProductSearch(ctx context.Context, sess *domain.Session, content string, result intent.Result) *Reply {
	parsed := relevance.ParseQuery(content)
	if parsed.Category == "" {
		return s.startFlow(ctx, sess, s.machine.StartProductFlow)
	}

	out, err := s.machine.StartProductFlow(ctx, sess)
	if err != nil {
		slog.Error("failed to start product flow", "session_id", sess.ID, "error", err)
		return &Reply{Message: RetryMessage}
	}
	out, err = s.machine.Advance(ctx, sess, content)
	if err != nil {
		slog.Error("failed to seed category from search", "session_id", sess.ID, "error", err)
		return &Reply{Message: RetryMessage}
	}
	reply := s.replyFromOutcome(out)
	reply.Confidence = result.Confidence
	return reply
}

func (s *Service) startFlow(ctx context.Context, sess *domain.Session, start func(context.Context, *domain.Session) (dialog.Outcome, error)) *Reply {
	out, err := start(ctx, sess)
	if err != nil {
		slog.Error("failed to start dialogue flow", "session_id", sess.ID, "error", err)
		return &Reply{Message: RetryMessage}
	}
	return s.replyFromOutcome(out)
}

// replyFromOutcome converts a dialogue outcome into a reply, attaching
// ranked products only when the outcome satisfies the policy gate.
func (s *Service) replyFromOutcome(out dialog.Outcome) *Reply {
	reply := &Reply{
		Message:  out.Reply,
		Order:    out.Order,
		Timeline: out.Timeline,
	}

	if !out.ProductsReady || !out.Slots.ReadyForProducts() {
		return reply
	}

	queryIntent := relevance.ParseQuery(out.SearchText)
	if queryIntent.Empty() {
		reply.Message = noMatchMessage
		return reply
	}
	matches := s.engine.Rank(queryIntent, s.cfg.ProductTopK)
	applySort(matches, out.Slots.Sort)

	if len(matches) == 0 {
		reply.Message = noMatchMessage
		return reply
	}
	reply.Products = matches
	return reply
}

// ragReply answers a general utterance via retrieval-augmented
// generation. Products are not retrieved here: the gate for surfacing
// them is owned by the dialogue flow.
func (s *Service) ragReply(ctx context.Context, sess *domain.Session, content string, result intent.Result) *Reply {
	hits := s.assembler.RetrieveKnowledge(content)

	recent := append(sess.RecentMessages(s.cfg.Assembler.HistoryTurns), domain.Message{
		Role:    domain.RoleUser,
		Content: content,
	})
	messages, systemPrompt := s.assembler.Build(recent, hits, nil)

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	raw, err := s.provider.Generate(genCtx, messages, systemPrompt)
	if err != nil {
		// Safe fallback; the session is forced idle so the user can
		// retry cleanly. The raw error stays server-side.
		perr := errors.Wrap(ErrProviderUnavailable, err.Error())
		slog.Error("provider call failed", "session_id", sess.ID, "provider", s.provider.Name(), "error", perr)
		s.logTurn(sess.ID, uuid.NewString(), "internal", "provider_failure", perr.Error())
		if werr := s.repo.WriteSlots(ctx, sess.ID, sess.Slots, domain.FlowIdle); werr != nil {
			slog.Error("failed to reset session after provider failure", "session_id", sess.ID, "error", werr)
		} else {
			sess.FlowState = domain.FlowIdle
		}
		return &Reply{Message: FallbackMessage}
	}

	parsed := ParseModelReply(raw)

	// The model asking for the product flow hands control to the
	// dialogue instead of rendering its text.
	if parsed.ShouldStartProductFlow {
		reply := s.startFlow(ctx, sess, s.machine.StartProductFlow)
		reply.ShouldStartProductFlow = true
		return reply
	}

	reply := &Reply{
		Message:    parsed.Message,
		Confidence: maxFloat(parsed.Confidence, result.Confidence),
	}
	for _, hit := range hits {
		reply.Sources = append(reply.Sources, Source{Title: hit.Item.Title, URL: hit.Item.SourceURL})
	}
	return reply
}

func (s *Service) logTurn(sessionID, turnID, direction, eventType, content string) {
	s.translog.Log(TranscriptEvent{
		SessionID: sessionID,
		Channel:   "chat",
		Direction: direction,
		EventType: eventType,
		Content:   content,
		Meta:      map[string]any{"turn_id": turnID},
	})
}

// applySort reorders matches by the user's sort preference. The
// default keeps relevance order.
func applySort(matches []relevance.Match, order domain.SortOrder) {
	switch order {
	case domain.SortPriceLow:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Product.Price < matches[j].Product.Price
		})
	case domain.SortPriceHigh:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Product.Price > matches[j].Product.Price
		})
	}
}

func wantsRefinement(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "refine") ||
		strings.Contains(lower, "more options") ||
		strings.Contains(lower, "narrow")
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
