package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Contrato de envío de códigos: a lo sumo 3 solicitudes por email cada 10 minutos.
const (
	defaultOTPRateWindow = 10 * time.Minute
	defaultOTPRateMax    = 3
)

// INCR atómico con expiración fijada en el primer hit de la ventana.
const otpRateScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisOTPRateLimiter cuenta solicitudes por email normalizado en ventanas
// fijas. Ante una falla de redis deja pasar: un límite caído no puede bloquear
// el sign-in completo.
type redisOTPRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

// NewRedisOTPRateLimiter crea el rate limiter de códigos sobre redis. Con
// window o max en cero aplica el contrato por defecto de 3 cada 10 minutos.
func NewRedisOTPRateLimiter(client *redis.Client, window time.Duration, max int) OTPRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = defaultOTPRateWindow
	}
	if max <= 0 {
		max = defaultOTPRateMax
	}
	return &redisOTPRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "auth:otp:rl:",
	}
}

func (l *redisOTPRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	email := normalizeEmail(key)
	if email == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	count, err := l.client.Eval(ctx, otpRateScript, []string{l.prefix + email}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}
