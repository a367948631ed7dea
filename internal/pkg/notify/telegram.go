// Package notify delivers operator alerts to Telegram.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Min interval between any two Telegram messages to the same chat to avoid 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

const queueSize = 100

// sender is the part of the bot API the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends alerts from a background queue with a fixed
// minimum interval between messages. A nil *TelegramNotifier is a valid
// no-op notifier.
type TelegramNotifier struct {
	bot      sender
	chatID   int64
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSend time.Time
	dropped  int

	queue  chan string
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewTelegramNotifier connects the bot and starts the sender. It returns nil
// if the bot cannot be reached, which callers treat as notifications off.
func NewTelegramNotifier(token string, chatID int64, logger *slog.Logger) *TelegramNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create telegram bot", "error", err)
		return nil
	}
	bot.Debug = false

	n := newNotifier(bot, chatID, telegramSendInterval, logger)
	logger.Info("Telegram notifier initialized", "chat_id", chatID, "bot", bot.Self.UserName)
	return n
}

func newNotifier(bot sender, chatID int64, interval time.Duration, logger *slog.Logger) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:      bot,
		chatID:   chatID,
		interval: interval,
		logger:   logger,
		queue:    make(chan string, queueSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go n.messageSender()
	return n
}

// Notify queues text without blocking. When the queue is full the message
// is dropped and counted.
func (n *TelegramNotifier) Notify(text string) {
	if n == nil {
		return
	}
	select {
	case <-n.ctx.Done():
		return
	default:
	}

	select {
	case n.queue <- text:
	default:
		n.mu.Lock()
		n.dropped++
		n.mu.Unlock()
		n.logger.Warn("Telegram message queue is full, dropping message", "message_preview", truncateString(text, 50))
	}
}

// Dropped returns how many messages were discarded because the queue was full.
func (n *TelegramNotifier) Dropped() int {
	if n == nil {
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// QueueLen returns current number of messages in the send queue.
func (n *TelegramNotifier) QueueLen() int {
	if n == nil {
		return 0
	}
	return len(n.queue)
}

func (n *TelegramNotifier) messageSender() {
	defer close(n.done)
	for {
		select {
		case <-n.ctx.Done():
			// Drain remaining messages before exit
			for {
				select {
				case text := <-n.queue:
					n.send(text, false)
				default:
					return
				}
			}
		case text := <-n.queue:
			n.send(text, true)
		}
	}
}

// send delivers one message, first waiting out the rate limit when wait is set.
func (n *TelegramNotifier) send(text string, wait bool) {
	n.mu.Lock()
	elapsed := time.Since(n.lastSend)
	n.mu.Unlock()

	if wait && elapsed < n.interval {
		select {
		case <-n.ctx.Done():
		case <-time.After(n.interval - elapsed):
		}
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	start := time.Now()
	_, err := n.bot.Send(msg)

	n.mu.Lock()
	n.lastSend = time.Now()
	n.mu.Unlock()

	if err != nil {
		n.logger.Error("Telegram send: failed", "error", err, "send_duration", time.Since(start))
		return
	}
	n.logger.Debug("Telegram send: success", "send_duration", time.Since(start), "queue_length", len(n.queue))
}

// Close sends what is still queued and stops the sender.
func (n *TelegramNotifier) Close() {
	if n == nil {
		return
	}
	n.once.Do(n.cancel)
	<-n.done
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(s[:maxLen]) + "..."
}
