package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"devchat/internal/service"
)

const authClaimsKey = "auth_claims"

// Headers del canal lateral de renovación de sesión.
const (
	RefreshTokenHeader    = "Refresh-Token"
	NewAccessTokenHeader  = "New-Access-Token"
	NewRefreshTokenHeader = "New-Refresh-Token"
)

// Códigos legibles por máquina para el cliente en respuestas 401.
const (
	CodeRefreshTokenUsed = "REFRESH_TOKEN_USED"
	CodeRefreshError     = "REFRESH_ERROR"
)

// AuthMiddleware es la guardia de sesión: valida el access token y, si falla
// y llega un refresh token, intenta exactamente una renovación. Los tokens
// nuevos viajan en headers de respuesta para que el cliente los persista sin
// tocar el body. Ningún handler corre sin identidad resuelta.
func AuthMiddleware(logger *zap.Logger, jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized - no token provided"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.ParseAccessToken(token)
		if err == nil {
			c.Set(authClaimsKey, claims)
			c.Next()
			return
		}

		refreshToken := strings.TrimSpace(c.GetHeader(RefreshTokenHeader))
		if refreshToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized - invalid token"})
			c.Abort()
			return
		}

		// Un solo intento de refresh por request, sin reintentos.
		pair, refreshErr := jwtSvc.RefreshPair(refreshToken)
		switch {
		case refreshErr == nil:
			refreshed, parseErr := jwtSvc.ParseAccessToken(pair.AccessToken)
			if parseErr != nil {
				if logger != nil {
					logger.Error("parse refreshed access token failed", zap.Error(parseErr))
				}
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "authentication error - please try again",
					"code":  CodeRefreshError,
				})
				c.Abort()
				return
			}
			c.Header(NewAccessTokenHeader, pair.AccessToken)
			c.Header(NewRefreshTokenHeader, pair.RefreshToken)
			c.Set(authClaimsKey, refreshed)
			c.Next()

		case errors.Is(refreshErr, service.ErrRefreshTokenUsed):
			// Un refresh token consumido jamás vuelve a ser válido: el
			// cliente tiene que autenticarse desde cero.
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "session expired - please login again",
				"code":  CodeRefreshTokenUsed,
			})
			c.Abort()

		case errors.Is(refreshErr, service.ErrJWTInvalid), errors.Is(refreshErr, service.ErrJWTExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized - invalid refresh token"})
			c.Abort()

		default:
			// Falla de infraestructura durante el refresh; no disfrazarla
			// de "vuelva a loguearse".
			if logger != nil {
				logger.Error("token refresh failed unexpectedly", zap.Error(refreshErr))
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication error - please try again",
				"code":  CodeRefreshError,
			})
			c.Abort()
		}
	}
}

// GetAuthClaims obtiene los claims de sesión desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
