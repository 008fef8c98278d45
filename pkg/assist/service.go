package assist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/inkfold/inkfold/pkg/project"
)

// ErrNotConfigured means no completion provider is wired, usually a
// missing API key.
var ErrNotConfigured = errors.New("assist: provider not configured")

// Service turns author requests into provider calls and parses the
// replies. It keeps the running conversation so follow-up questions
// carry their history.
type Service struct {
	store    *project.Store
	provider CompletionProvider

	mu      sync.Mutex
	history []Message
}

// NewService wires the assistant over the entity store. provider may be
// nil; requests then fail with ErrNotConfigured until SetProvider.
func NewService(store *project.Store, provider CompletionProvider) *Service {
	return &Service{store: store, provider: provider}
}

// SetProvider swaps the model backend, e.g. after a settings change.
func (s *Service) SetProvider(p CompletionProvider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
}

// IsConfigured reports whether requests can be sent.
func (s *Service) IsConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider != nil
}

// History returns a copy of the recorded conversation.
func (s *Service) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.history...)
}

// ClearHistory starts a fresh conversation.
func (s *Service) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Send performs one synchronous request. When req.History is nil the
// service's recorded conversation is used. The user turn is recorded
// before the provider call; the reply is appended only on success.
func (s *Service) Send(ctx context.Context, req Request) (*Response, error) {
	provider, req := s.prepare(req)
	if provider == nil {
		return nil, ErrNotConfigured
	}

	system, msgs := BuildMessages(req, s.activeCharacters(req), s.activeOutline(req))
	s.recordUser(req.UserMessage)
	completion, err := provider.Complete(ctx, system, msgs)
	if err != nil {
		return nil, fmt.Errorf("assist: complete: %w", err)
	}

	resp := ParseResponse(completion.Content, completion.Usage, s.resolver())
	s.recordReply(resp.Content)
	return resp, nil
}

// Stream performs one streaming request. cb.OnToken sees each delta;
// cb.OnComplete sees the parsed response. Errors go to cb.OnError and
// are also returned.
func (s *Service) Stream(ctx context.Context, req Request, cb StreamCallbacks) error {
	provider, req := s.prepare(req)
	if provider == nil {
		if cb.OnError != nil {
			cb.OnError(ErrNotConfigured)
		}
		return ErrNotConfigured
	}

	if cb.OnStart != nil {
		cb.OnStart()
	}

	system, msgs := BuildMessages(req, s.activeCharacters(req), s.activeOutline(req))
	s.recordUser(req.UserMessage)
	onToken := cb.OnToken
	if onToken == nil {
		onToken = func(string) {}
	}
	completion, err := provider.Stream(ctx, system, msgs, onToken)
	if err != nil {
		err = fmt.Errorf("assist: stream: %w", err)
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	resp := ParseResponse(completion.Content, completion.Usage, s.resolver())
	s.recordReply(resp.Content)
	if cb.OnComplete != nil {
		cb.OnComplete(resp)
	}
	return nil
}

// RunQuickAction sends a built-in editing task over the selected text.
func (s *Service) RunQuickAction(ctx context.Context, typ QuickActionType, req Request) (*Response, error) {
	action, ok := QuickActionByType(typ)
	if !ok {
		return nil, fmt.Errorf("assist: unknown quick action %q", typ)
	}
	req.Mode = ModeEditor
	req.UserMessage = action.Prompt
	return s.Send(ctx, req)
}

func (s *Service) prepare(req Request) (CompletionProvider, Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.History == nil {
		req.History = append([]Message(nil), s.history...)
	}
	return s.provider, req
}

// recordUser persists the author's turn before the provider call, so a
// failed request still leaves the question in the conversation.
func (s *Service) recordUser(userMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Message{Role: RoleUser, Content: userMessage})
}

func (s *Service) recordReply(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Message{Role: RoleAssistant, Content: reply})
}

// activeCharacters resolves the snapshot's active character IDs to full
// sheets. Pruned or deleted IDs are skipped silently.
func (s *Service) activeCharacters(req Request) []*project.Character {
	if req.Context == nil || s.store == nil {
		return nil
	}
	var out []*project.Character
	for _, id := range req.Context.ActiveCharacterIDs {
		if c, err := s.store.GetCharacter(id); err == nil {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) activeOutline(req Request) []*project.OutlineNode {
	if req.Context == nil || s.store == nil {
		return nil
	}
	var out []*project.OutlineNode
	for _, id := range req.Context.ActiveOutlineNodeIDs {
		if n, err := s.store.GetOutlineNode(id); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func (s *Service) resolver() Resolver {
	if s.store == nil {
		return nil
	}
	return storeResolver{s.store}
}

type storeResolver struct {
	store *project.Store
}

func (r storeResolver) DocumentTitle(id string) (string, bool) {
	d, err := r.store.GetDocument(id)
	if err != nil {
		return "", false
	}
	return d.Title, true
}

func (r storeResolver) CharacterName(id string) (string, bool) {
	c, err := r.store.GetCharacter(id)
	if err != nil {
		return "", false
	}
	return c.Name, true
}

func (r storeResolver) OutlineTitle(id string) (string, bool) {
	n, err := r.store.GetOutlineNode(id)
	if err != nil {
		return "", false
	}
	return n.Title, true
}
