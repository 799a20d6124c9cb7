package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"devchat/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	authH *AuthHandler,
	convH *ConversationHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares básicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/send-code", authH.SendCode)
	auth.POST("/verify-code", authH.VerifyCode)
	auth.POST("/logout", authH.Logout)
	auth.GET("/me", AuthMiddleware(logger, jwtSvc), authH.Me)

	// Todo lo de conversaciones pasa por la guardia de sesión.
	conversations := r.Group("/conversations")
	conversations.Use(AuthMiddleware(logger, jwtSvc))
	conversations.POST("", convH.CreateTurn)
	conversations.GET("/prompts/:conversationId", convH.GetTranscript)
	conversations.GET("/recent-prompts/:userId", convH.GetRecent)
	conversations.GET("/user/:userId", convH.ListConversations)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
