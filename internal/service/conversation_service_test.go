package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"devchat/internal/domain"
	"devchat/internal/llm"
)

type mockConversationRepo struct {
	created []domain.Conversation
	list    []domain.Conversation
	err     error
}

func (m *mockConversationRepo) Create(_ context.Context, conversation domain.Conversation) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, conversation)
	return nil
}

func (m *mockConversationRepo) ListByUser(_ context.Context, _ string) ([]domain.Conversation, error) {
	return m.list, m.err
}

type mockPromptRepo struct {
	pairs      [][2]domain.Prompt
	transcript []domain.Prompt
	recent     []domain.Prompt
	embedded   map[string][]domain.Prompt
	pairErr    error
}

func (m *mockPromptRepo) CreatePair(_ context.Context, userPrompt, assistantPrompt domain.Prompt) error {
	if m.pairErr != nil {
		return m.pairErr
	}
	m.pairs = append(m.pairs, [2]domain.Prompt{userPrompt, assistantPrompt})
	return nil
}

func (m *mockPromptRepo) ListByConversation(_ context.Context, _ string) ([]domain.Prompt, error) {
	return m.transcript, nil
}

func (m *mockPromptRepo) ListRecentByUser(_ context.Context, _ string, _ time.Time) ([]domain.Prompt, error) {
	return m.recent, nil
}

func (m *mockPromptRepo) ListForConversation(_ context.Context, conversationID string) ([]domain.Prompt, error) {
	return m.embedded[conversationID], nil
}

type mockImageStore struct {
	uploads int
}

func (m *mockImageStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if string(data) == "bad" {
		return "", errors.New("upload failed")
	}
	m.uploads++
	return "https://cdn.example.com/images/" + key, nil
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func newTestConversationService(convRepo *mockConversationRepo, promptRepo *mockPromptRepo, client llm.Client, images *mockImageStore) *ConversationService {
	return NewConversationService(nil, convRepo, promptRepo, client, images)
}

func TestConversationService_EmptyInput(t *testing.T) {
	convRepo := &mockConversationRepo{}
	promptRepo := &mockPromptRepo{}
	svc := newTestConversationService(convRepo, promptRepo, &llm.MockClient{Response: "hi"}, &mockImageStore{})

	_, _, err := svc.CreateTurn(context.Background(), TurnInput{UserID: "u1", UserInput: "   "})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if len(convRepo.created) != 0 || len(promptRepo.pairs) != 0 {
		t.Fatalf("nothing must be persisted on validation failure")
	}
}

func TestConversationService_NewTurnPersistsPairInOrder(t *testing.T) {
	convRepo := &mockConversationRepo{}
	promptRepo := &mockPromptRepo{}
	client := &llm.MockClient{Response: "use a slice"}
	svc := newTestConversationService(convRepo, promptRepo, client, &mockImageStore{})

	history := []llm.Message{
		{Role: "user", Content: "previous question"},
		{Role: "assistant", Content: "previous answer"},
	}
	conversationID, prompts, err := svc.CreateTurn(context.Background(), TurnInput{
		UserID:    "u1",
		UserInput: "how do I append?",
		History:   history,
	})
	if err != nil {
		t.Fatalf("create turn: %v", err)
	}
	if conversationID == "" {
		t.Fatalf("expected resolved conversation id")
	}
	if len(convRepo.created) != 1 || convRepo.created[0].ID != conversationID {
		t.Fatalf("expected one conversation created with the resolved id")
	}

	if len(prompts) != 2 || prompts[0].Role != domain.RoleUser || prompts[1].Role != domain.RoleAssistant {
		t.Fatalf("expected [user, assistant], got %+v", prompts)
	}
	if prompts[1].Content != "use a slice" {
		t.Fatalf("unexpected assistant content: %q", prompts[1].Content)
	}

	if len(promptRepo.pairs) != 1 {
		t.Fatalf("expected one persisted pair, got %d", len(promptRepo.pairs))
	}
	pair := promptRepo.pairs[0]
	if pair[0].Role != domain.RoleUser || pair[1].Role != domain.RoleAssistant {
		t.Fatalf("persisted pair out of order: %+v", pair)
	}
	if pair[0].ConversationID != conversationID || pair[1].ConversationID != conversationID {
		t.Fatalf("pair not linked to conversation")
	}

	// El modelo recibe sistema + historial previo + turno actual.
	if len(client.LastMessages) != 4 {
		t.Fatalf("expected 4 messages to the model, got %d", len(client.LastMessages))
	}
	if client.LastMessages[0].Role != "system" || client.LastMessages[0].Content != llm.SystemPrompt {
		t.Fatalf("system instruction must come first")
	}
	if client.LastMessages[3].Content != "how do I append?" {
		t.Fatalf("current turn must come last, got %+v", client.LastMessages[3])
	}
}

func TestConversationService_ExistingConversationSkipsCreate(t *testing.T) {
	convRepo := &mockConversationRepo{}
	promptRepo := &mockPromptRepo{}
	svc := newTestConversationService(convRepo, promptRepo, &llm.MockClient{Response: "ok"}, &mockImageStore{})

	conversationID, _, err := svc.CreateTurn(context.Background(), TurnInput{
		UserID:         "u1",
		UserInput:      "follow-up",
		ConversationID: "conv-42",
	})
	if err != nil {
		t.Fatalf("create turn: %v", err)
	}
	if conversationID != "conv-42" {
		t.Fatalf("expected supplied id to be reused, got %q", conversationID)
	}
	if len(convRepo.created) != 0 {
		t.Fatalf("existing conversation must not be recreated")
	}
}

func TestConversationService_ImageBatchIsAllOrNothing(t *testing.T) {
	convRepo := &mockConversationRepo{}
	promptRepo := &mockPromptRepo{}
	client := &llm.MockClient{Response: "ok"}
	svc := newTestConversationService(convRepo, promptRepo, client, &mockImageStore{})

	_, _, err := svc.CreateTurn(context.Background(), TurnInput{
		UserID:    "u1",
		UserInput: "look at these",
		Images:    []string{b64("good image"), b64("bad")},
	})
	if err == nil {
		t.Fatalf("expected upload failure to abort the turn")
	}
	if len(convRepo.created) != 0 {
		t.Fatalf("no conversation row may exist after a failed image batch")
	}
	if len(promptRepo.pairs) != 0 {
		t.Fatalf("no prompt rows may exist after a failed image batch")
	}
	if client.Calls != 0 {
		t.Fatalf("model must not be called after a failed image batch")
	}
}

func TestConversationService_ImagesAttachDurableURLs(t *testing.T) {
	convRepo := &mockConversationRepo{}
	promptRepo := &mockPromptRepo{}
	images := &mockImageStore{}
	svc := newTestConversationService(convRepo, promptRepo, &llm.MockClient{Response: "ok"}, images)

	dataURL := "data:image/jpeg;base64," + b64("pixels")
	_, _, err := svc.CreateTurn(context.Background(), TurnInput{
		UserID:    "u1",
		UserInput: "with images",
		Images:    []string{dataURL, b64("more pixels")},
	})
	if err != nil {
		t.Fatalf("create turn: %v", err)
	}
	if images.uploads != 2 {
		t.Fatalf("expected 2 uploads, got %d", images.uploads)
	}
	if len(convRepo.created) != 1 {
		t.Fatalf("expected conversation created")
	}
	urls := convRepo.created[0].ImageURLs
	if len(urls) != 2 {
		t.Fatalf("expected 2 image urls, got %+v", urls)
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "https://cdn.example.com/images/images/u1/") {
			t.Fatalf("unexpected url %q", u)
		}
	}
}

func TestConversationService_ModelFailurePersistsNoPrompts(t *testing.T) {
	convRepo := &mockConversationRepo{}
	promptRepo := &mockPromptRepo{}
	svc := newTestConversationService(convRepo, promptRepo, &llm.MockClient{Err: errors.New("llm down")}, &mockImageStore{})

	_, _, err := svc.CreateTurn(context.Background(), TurnInput{UserID: "u1", UserInput: "hello"})
	if err == nil {
		t.Fatalf("expected model failure to surface")
	}
	if len(promptRepo.pairs) != 0 {
		t.Fatalf("no prompt rows may exist after a model failure")
	}
}

func TestConversationService_GetRecentGroupsByConversation(t *testing.T) {
	now := time.Now().UTC()
	promptRepo := &mockPromptRepo{
		recent: []domain.Prompt{
			{ConversationID: "c2", Role: "assistant", Content: "a2", CreatedAt: now},
			{ConversationID: "c2", Role: "user", Content: "q2", CreatedAt: now.Add(-time.Minute)},
			{ConversationID: "c1", Role: "assistant", Content: "a1", CreatedAt: now.Add(-time.Hour)},
			{ConversationID: "c1", Role: "user", Content: "q1", CreatedAt: now.Add(-2 * time.Hour)},
		},
	}
	svc := newTestConversationService(&mockConversationRepo{}, promptRepo, &llm.MockClient{}, &mockImageStore{})

	groups, total, err := svc.GetRecent(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("get recent: %v", err)
	}
	if total != 4 {
		t.Fatalf("total counts messages, expected 4 got %d", total)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	// El grupo de la conversación más reciente va primero.
	if groups[0][0].Content != "a2" || groups[1][0].Content != "a1" {
		t.Fatalf("unexpected group order: %+v", groups)
	}
}

func TestConversationService_ListConversationsEmpty(t *testing.T) {
	svc := newTestConversationService(&mockConversationRepo{}, &mockPromptRepo{}, &llm.MockClient{}, &mockImageStore{})

	conversations, total, err := svc.ListConversations(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if total != 0 || len(conversations) != 0 {
		t.Fatalf("expected empty result, got %d/%d", len(conversations), total)
	}
	if conversations == nil {
		t.Fatalf("expected empty slice, not nil")
	}
}

func TestConversationService_ListConversationsEmbedsPrompts(t *testing.T) {
	now := time.Now().UTC()
	convRepo := &mockConversationRepo{
		list: []domain.Conversation{
			{ID: "c1", UserID: "u1", UserInput: "first question", CreatedAt: now},
		},
	}
	promptRepo := &mockPromptRepo{
		embedded: map[string][]domain.Prompt{
			"c1": {
				{Role: "user", Content: "first question"},
				{Role: "assistant", Content: "an answer"},
			},
		},
	}
	svc := newTestConversationService(convRepo, promptRepo, &llm.MockClient{}, &mockImageStore{})

	conversations, total, err := svc.ListConversations(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if total != 1 || len(conversations) != 1 {
		t.Fatalf("expected one conversation, got %d/%d", len(conversations), total)
	}
	if len(conversations[0].Prompts) != 2 {
		t.Fatalf("expected embedded prompts, got %+v", conversations[0].Prompts)
	}
	if conversations[0].ImageURLs == nil {
		t.Fatalf("image urls must serialize as [], not null")
	}
}
