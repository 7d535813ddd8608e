package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/utils/cache"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// attemptWindow is how long failed attempts are remembered
const attemptWindow = 15 * time.Minute

// BruteForceProtection locks out clients with repeated failed logins
type BruteForceProtection struct {
	cache cache.Cache
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(c cache.Cache) *BruteForceProtection {
	return &BruteForceProtection{
		cache: c,
	}
}

func attemptKey(ip string) string { return fmt.Sprintf("brute_force:attempts:%s", ip) }
func lockKey(ip string) string    { return fmt.Sprintf("brute_force:lock:%s", ip) }
func loginKey(login string) string {
	return fmt.Sprintf("brute_force:login:%s", strings.ToLower(strings.TrimSpace(login)))
}

// CheckAndRecordAttempt middleware rejects requests from a locked-out IP
func (b *BruteForceProtection) CheckAndRecordAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lock := lockKey(c.IP())

		locked, err := b.cache.Exists(c.UserContext(), lock)
		if err != nil {
			// Cache outages must not block logins
			return c.Next()
		}

		if locked {
			ttl, _ := b.cache.TTL(c.UserContext(), lock)
			retryAfter := int(ttl.Seconds())
			if retryAfter <= 0 {
				retryAfter = 60
			}

			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
		}

		return c.Next()
	}
}

// lockDuration returns the progressive lockout for the given number of failures
func lockDuration(attempts int64) time.Duration {
	switch {
	case attempts >= 25:
		return 24 * time.Hour
	case attempts >= 10:
		return time.Hour
	case attempts >= 5:
		return 2 * time.Minute
	}
	return 0
}

// RecordFailedAttempt counts a failed login for ip and login and applies progressive lockouts
func (b *BruteForceProtection) RecordFailedAttempt(ctx context.Context, ip, login string) error {
	attempts, err := b.cache.Increment(ctx, attemptKey(ip))
	if err != nil {
		return nil
	}
	if attempts == 1 {
		_ = b.cache.Expire(ctx, attemptKey(ip), attemptWindow)
	}

	if login != "" {
		if n, err := b.cache.Increment(ctx, loginKey(login)); err == nil && n == 1 {
			_ = b.cache.Expire(ctx, loginKey(login), attemptWindow)
		}
	}

	d := lockDuration(attempts)
	if d == 0 {
		return nil
	}
	return b.cache.Set(ctx, lockKey(ip), "locked", d)
}

// RecordSuccessfulAttempt clears failed attempts on successful login
func (b *BruteForceProtection) RecordSuccessfulAttempt(ctx context.Context, ip, login string) error {
	keys := []string{attemptKey(ip), lockKey(ip)}
	if login != "" {
		keys = append(keys, loginKey(login))
	}
	return b.cache.Delete(ctx, keys...)
}

// GetAttemptCount returns the current attempt count for an IP
func (b *BruteForceProtection) GetAttemptCount(ctx context.Context, ip string) (int, error) {
	val, err := b.cache.Get(ctx, attemptKey(ip))
	if err != nil {
		if err == cache.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	count, _ := strconv.Atoi(val)
	return count, nil
}

// IsIPLocked checks if an IP is currently locked
func (b *BruteForceProtection) IsIPLocked(ctx context.Context, ip string) (bool, error) {
	return b.cache.Exists(ctx, lockKey(ip))
}
