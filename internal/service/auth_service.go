package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"devchat/internal/domain"
	"devchat/internal/email"
	"devchat/internal/repository"
)

// AuthService coordina el alta por código de un solo uso y la emisión de sesión.
type AuthService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
	otpStore    OTPStore
	otpLimiter  OTPRateLimiter
	jwt         *JWTService
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, otpStore OTPStore, otpLimiter OTPRateLimiter, jwtSvc *JWTService) *AuthService {
	if otpStore == nil {
		otpStore = NewMemoryOTPStore()
	}
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(otpTTL, 3)
	}
	return &AuthService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
		otpStore:    otpStore,
		otpLimiter:  otpLimiter,
		jwt:         jwtSvc,
	}
}

var (
	ErrInvalidEmail     = errors.New("email is required")
	ErrRateLimited      = errors.New("rate limited")
	ErrEmailSendFailure = errors.New("email send failed")
	ErrOTPNotRequested  = errors.New("no code was requested for this email")
	ErrOTPInvalid       = errors.New("code is invalid or has expired")
	ErrUserNotFound     = errors.New("user not found")
	// ErrNoIdentity cubre el caso en que la verificación pasa pero el store
	// no devuelve identidad; nunca se continúa en silencio.
	ErrNoIdentity = errors.New("verification succeeded but no identity returned")
)

const otpTTL = 10 * time.Minute

// SendCode valida el email, aplica rate limit y envía un código de un solo uso.
// No toca la tabla de usuarios: el alta ocurre recién al verificar.
func (s *AuthService) SendCode(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}

	if s.otpLimiter != nil && !s.otpLimiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	code, hash, expiresAt, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.otpStore.Set(emailAddr, hash, otpTTL); err != nil {
		return err
	}

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	if err := s.emailSender.SendSignInCode(ctx, emailAddr, code, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send sign-in code failed", zap.Error(err), zap.String("email", emailAddr))
		}
		return ErrEmailSendFailure
	}

	return nil
}

// VerifyCode canjea el código pendiente, hace upsert del usuario (idempotente,
// id estable por email) y emite el par de tokens de sesión.
func (s *AuthService) VerifyCode(ctx context.Context, emailAddr, code string) (domain.User, TokenPair, error) {
	if s.users == nil {
		return domain.User{}, TokenPair{}, errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" {
		return domain.User{}, TokenPair{}, ErrInvalidEmail
	}
	if !isValidOTPCode(code) {
		return domain.User{}, TokenPair{}, ErrOTPInvalid
	}

	hash, ok, err := s.otpStore.Get(emailAddr)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	if !ok {
		return domain.User{}, TokenPair{}, ErrOTPNotRequested
	}
	if !verifyOTP(code, hash) {
		return domain.User{}, TokenPair{}, ErrOTPInvalid
	}
	if err := s.otpStore.Delete(emailAddr); err != nil && s.logger != nil {
		s.logger.Warn("consume otp failed", zap.Error(err), zap.String("email", emailAddr))
	}

	user, err := s.users.Upsert(ctx, domain.User{
		ID:        uuid.NewString(),
		Email:     emailAddr,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	if strings.TrimSpace(user.ID) == "" {
		return domain.User{}, TokenPair{}, ErrNoIdentity
	}

	if s.jwt == nil {
		return domain.User{}, TokenPair{}, errors.New("jwt not configured")
	}
	pair, err := s.jwt.GeneratePair(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}

	return user, pair, nil
}

// GetUser busca el usuario de una sesión por su id.
func (s *AuthService) GetUser(ctx context.Context, id string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func generateOTP() (string, string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", time.Time{}, err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", time.Time{}, err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	expiresAt := time.Now().UTC().Add(otpTTL)
	return code, saltStr + ":" + hash, expiresAt, nil
}

func verifyOTP(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	saltStr := parts[0]
	expectedHash := parts[1]
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// OTPRateLimiter limita la frecuencia de solicitudes de código por clave.
type OTPRateLimiter interface {
	Allow(key string) bool
}

type otpRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewOTPRateLimiter crea un rate limiter en memoria.
func NewOTPRateLimiter(window time.Duration, max int) OTPRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &otpRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *otpRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
