package middleware

import (
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL   = time.Hour
	limiterCleanup   = 10 * time.Minute
	warningInterval  = 30 * time.Second
	maxWarningLevels = 3
)

// messageSender is the part of the Bot API the middleware replies with.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// userLimit tracks rate limit state for a single user
type userLimit struct {
	limiter       *rate.Limiter
	mu            sync.Mutex
	warningsSent  int
	lastWarningAt time.Time
}

// RateLimiterMiddleware implements token bucket rate limiting per user.
// Users idle for an hour are forgotten.
type RateLimiterMiddleware struct {
	limits *cache.Cache
	mu     sync.Mutex
	every  rate.Limit
	burst  int
	logger *zap.Logger
	api    messageSender
	now    func() time.Time
}

// NewRateLimiterMiddleware creates a new rate limiter middleware
func NewRateLimiterMiddleware(
	requestsPerMinute int,
	burstSize int,
	logger *zap.Logger,
	api messageSender,
) *RateLimiterMiddleware {
	if burstSize <= 0 {
		burstSize = 1
	}
	return &RateLimiterMiddleware{
		limits: cache.New(limiterIdleTTL, limiterCleanup),
		every:  rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:  burstSize,
		logger: logger,
		api:    api,
		now:    time.Now,
	}
}

// Handle processes the update through rate limiting
func (rl *RateLimiterMiddleware) Handle(update tgbotapi.Update, next func(tgbotapi.Update)) {
	userID, chatID := updateIDs(update)
	if userID == 0 {
		next(update)
		return
	}

	if !rl.allowRequest(userID, chatID) {
		rl.logger.Warn("rate limit exceeded",
			zap.Int64("user_id", userID),
			zap.Int64("chat_id", chatID),
		)
		return
	}

	next(update)
}

// allowRequest checks if request is allowed under rate limit
func (rl *RateLimiterMiddleware) allowRequest(userID, chatID int64) bool {
	limit := rl.userLimit(userID)

	limit.mu.Lock()
	defer limit.mu.Unlock()

	now := rl.now()
	if limit.limiter.AllowN(now, 1) {
		limit.warningsSent = 0
		return true
	}

	if now.Sub(limit.lastWarningAt) > warningInterval {
		if limit.warningsSent < maxWarningLevels {
			limit.warningsSent++
		}
		limit.lastWarningAt = now
		rl.sendRateLimitWarning(chatID, limit.warningsSent)
	}

	return false
}

func (rl *RateLimiterMiddleware) userLimit(userID int64) *userLimit {
	key := strconv.FormatInt(userID, 10)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limits.Get(key); ok {
		rl.limits.SetDefault(key, v)
		return v.(*userLimit)
	}

	limit := &userLimit{limiter: rate.NewLimiter(rl.every, rl.burst)}
	rl.limits.SetDefault(key, limit)
	return limit
}

// sendRateLimitWarning sends a warning message to the user
func (rl *RateLimiterMiddleware) sendRateLimitWarning(chatID int64, warningCount int) {
	var text string

	switch {
	case warningCount <= 1:
		text = "⚠️ Too many messages. Please slow down a little."
	case warningCount == 2:
		text = "⚠️ Message limit reached. Please wait about 30 seconds."
	default:
		text = "🛑 You are sending messages too often. Please wait a minute."
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := rl.api.Send(msg); err != nil {
		rl.logger.Error("failed to send rate limit warning",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
	}
}

// updateIDs extracts the sender and chat of an update. Unknown update types
// yield zeros.
func updateIDs(update tgbotapi.Update) (userID, chatID int64) {
	switch {
	case update.Message != nil:
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil:
		userID = update.CallbackQuery.From.ID
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
	}
	return userID, chatID
}
