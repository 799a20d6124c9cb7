package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"devchat/internal/llm"
	"devchat/internal/service"
)

// ConversationHandler mantiene dependencias para los endpoints de conversaciones.
type ConversationHandler struct {
	logger   *zap.Logger
	convServ *service.ConversationService
}

// NewConversationHandler crea una instancia de ConversationHandler.
func NewConversationHandler(logger *zap.Logger, convServ *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{
		logger:   logger,
		convServ: convServ,
	}
}

// CreateTurn maneja POST /conversations. Recibe multipart form: userInput,
// images (base64, repetible), prompt (historial en JSON) y conversationId
// opcional. Devuelve el par user/assistant y el id de conversación resuelto.
func (h *ConversationHandler) CreateTurn(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized - invalid token"})
		return
	}

	userInput := c.PostForm("userInput")
	if userInput == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User input is required"})
		return
	}

	var history []llm.Message
	if rawPrompt := c.PostForm("prompt"); rawPrompt != "" {
		if err := json.Unmarshal([]byte(rawPrompt), &history); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prompt payload"})
			return
		}
	}

	conversationID, prompts, err := h.convServ.CreateTurn(c.Request.Context(), service.TurnInput{
		UserID:         claims.UserID,
		UserInput:      userInput,
		Images:         c.PostFormArray("images"),
		History:        history,
		ConversationID: c.PostForm("conversationId"),
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User input is required"})
			return
		}
		h.logger.Error("create turn failed", zap.Error(err), zap.String("user_id", claims.UserID))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create conversation",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"prompt":         prompts,
		"conversationId": conversationID,
	})
}

// GetTranscript maneja GET /conversations/prompts/:conversationId.
func (h *ConversationHandler) GetTranscript(c *gin.Context) {
	conversationID := c.Param("conversationId")

	prompts, err := h.convServ.GetTranscript(c.Request.Context(), conversationID)
	if err != nil {
		h.logger.Error("fetch transcript failed", zap.Error(err), zap.String("conversation_id", conversationID))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch prompts",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prompts": prompts})
}

// GetRecent maneja GET /conversations/recent-prompts/:userId.
func (h *ConversationHandler) GetRecent(c *gin.Context) {
	userID := c.Param("userId")

	groups, total, err := h.convServ.GetRecent(c.Request.Context(), userID, service.DefaultRecentWindowDays)
	if err != nil {
		h.logger.Error("fetch recent prompts failed", zap.Error(err), zap.String("user_id", userID))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch recent prompts",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prompts": groups, "total": total})
}

// ListConversations maneja GET /conversations/user/:userId.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.Param("userId")

	conversations, total, err := h.convServ.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list conversations failed", zap.Error(err), zap.String("user_id", userID))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch conversations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations, "total": total})
}
