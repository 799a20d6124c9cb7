package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"devchat/internal/domain"
	"devchat/internal/llm"
	"devchat/internal/repository"
	"devchat/internal/storage"
)

// ConversationService encapsula la escritura de turnos y las lecturas de
// transcripts. Un turno: subir imágenes, resolver conversación, llamar al
// modelo y persistir el par user/assistant. Cualquier falla aborta el turno
// completo; nunca queda un mensaje sin su contraparte.
type ConversationService struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	prompts       repository.PromptRepository
	llmClient     llm.Client
	images        storage.ImageStore
}

func NewConversationService(
	logger *zap.Logger,
	conversations repository.ConversationRepository,
	prompts repository.PromptRepository,
	llmClient llm.Client,
	images storage.ImageStore,
) *ConversationService {
	return &ConversationService{
		logger:        logger,
		conversations: conversations,
		prompts:       prompts,
		llmClient:     llmClient,
		images:        images,
	}
}

var (
	ErrEmptyInput        = errors.New("user input is required")
	ErrImagesUnavailable = errors.New("image storage not configured")
)

// DefaultRecentWindowDays es la ventana por defecto para prompts recientes.
const DefaultRecentWindowDays = 2

// TurnInput es la entrada de un turno: texto, imágenes en base64, el historial
// previo para el modelo y, si continúa un hilo, el id de la conversación.
type TurnInput struct {
	UserID         string
	UserInput      string
	Images         []string
	History        []llm.Message
	ConversationID string
}

// CreateTurn ejecuta un turno completo y devuelve el id de conversación
// resuelto junto con los dos mensajes nuevos, user y luego assistant.
func (s *ConversationService) CreateTurn(ctx context.Context, input TurnInput) (string, []domain.Prompt, error) {
	userInput := strings.TrimSpace(input.UserInput)
	if userInput == "" {
		return "", nil, ErrEmptyInput
	}

	imageURLs, err := s.uploadImages(ctx, input.UserID, input.Images)
	if err != nil {
		return "", nil, err
	}

	conversationID := strings.TrimSpace(input.ConversationID)
	if conversationID == "" {
		conversation := domain.Conversation{
			ID:        uuid.NewString(),
			UserID:    input.UserID,
			UserInput: userInput,
			ImageURLs: imageURLs,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.conversations.Create(ctx, conversation); err != nil {
			return "", nil, fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conversation.ID
	}

	messages := make([]llm.Message, 0, len(input.History)+2)
	messages = append(messages, llm.Message{Role: "system", Content: llm.SystemPrompt})
	messages = append(messages, input.History...)
	messages = append(messages, llm.Message{Role: domain.RoleUser, Content: userInput})

	reply, err := s.llmClient.Chat(ctx, messages)
	if err != nil {
		return "", nil, fmt.Errorf("chat completion: %w", err)
	}

	now := time.Now().UTC()
	userPrompt := domain.Prompt{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        userInput,
		CreatedAt:      now,
	}
	assistantPrompt := domain.Prompt{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        reply,
		CreatedAt:      now.Add(time.Millisecond),
	}
	if err := s.prompts.CreatePair(ctx, userPrompt, assistantPrompt); err != nil {
		return "", nil, fmt.Errorf("persist turn: %w", err)
	}

	return conversationID, []domain.Prompt{
		{Role: domain.RoleUser, Content: userInput},
		{Role: domain.RoleAssistant, Content: reply},
	}, nil
}

// uploadImages sube el lote en paralelo; si cualquiera falla, falla el lote
// completo y no se adjunta ninguna URL al turno.
func (s *ConversationService) uploadImages(ctx context.Context, userID string, images []string) ([]string, error) {
	if len(images) == 0 {
		return []string{}, nil
	}
	if s.images == nil {
		return nil, ErrImagesUnavailable
	}

	urls := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			data, err := decodeBase64Image(img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}
			key := fmt.Sprintf("images/%s/%d-%s.jpg", userID, time.Now().UnixMilli(), uuid.NewString()[:8])
			url, err := s.images.Upload(gctx, key, data, "image/jpeg")
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func decodeBase64Image(raw string) ([]byte, error) {
	// Acepta data URLs ("data:image/jpeg;base64,...") o base64 pelado.
	if idx := strings.Index(raw, ","); idx >= 0 {
		raw = raw[idx+1:]
	}
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("invalid base64 image data")
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// GetTranscript devuelve los mensajes de una conversación, el más reciente primero.
func (s *ConversationService) GetTranscript(ctx context.Context, conversationID string) ([]domain.Prompt, error) {
	prompts, err := s.prompts.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = []domain.Prompt{}
	}
	return prompts, nil
}

// GetRecent devuelve los mensajes del usuario dentro de la ventana, agrupados
// por conversación. El orden de los grupos sigue la primera aparición en el
// barrido de más reciente a más antiguo; total cuenta mensajes, no grupos.
func (s *ConversationService) GetRecent(ctx context.Context, userID string, windowDays int) ([][]domain.Prompt, int, error) {
	if windowDays <= 0 {
		windowDays = DefaultRecentWindowDays
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	prompts, err := s.prompts.ListRecentByUser(ctx, userID, since)
	if err != nil {
		return nil, 0, err
	}

	groups := make([][]domain.Prompt, 0)
	indexByConversation := make(map[string]int)
	for _, p := range prompts {
		idx, ok := indexByConversation[p.ConversationID]
		if !ok {
			idx = len(groups)
			indexByConversation[p.ConversationID] = idx
			groups = append(groups, []domain.Prompt{})
		}
		groups[idx] = append(groups[idx], domain.Prompt{
			Role:      p.Role,
			Content:   p.Content,
			CreatedAt: p.CreatedAt,
		})
	}

	return groups, len(prompts), nil
}

// ListConversations devuelve las conversaciones del usuario, la más reciente
// primero, con sus prompts embebidos en orden definido por el store.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]domain.ConversationWithPrompts, int, error) {
	conversations, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	result := make([]domain.ConversationWithPrompts, 0, len(conversations))
	for _, conv := range conversations {
		prompts, err := s.prompts.ListForConversation(ctx, conv.ID)
		if err != nil {
			return nil, 0, err
		}
		if prompts == nil {
			prompts = []domain.Prompt{}
		}
		imageURLs := conv.ImageURLs
		if imageURLs == nil {
			imageURLs = []string{}
		}
		result = append(result, domain.ConversationWithPrompts{
			ID:        conv.ID,
			UserInput: conv.UserInput,
			ImageURLs: imageURLs,
			CreatedAt: conv.CreatedAt,
			Prompts:   prompts,
		})
	}

	return result, len(result), nil
}
