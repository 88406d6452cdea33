package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// Min interval between any two Telegram messages to the same chat to avoid 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

// maxLinesPerMessage keeps a value alert under Telegram's message size limit.
const maxLinesPerMessage = 15

type messageType int

const (
	messageTypeValue messageType = iota
	messageTypeEntities
)

func (t messageType) String() string {
	if t == messageTypeEntities {
		return "entities"
	}
	return "value"
}

type queuedMessage struct {
	msgType   messageType
	text      string
	queuedAt  time.Time
	lineCount int
}

// sender is the part of tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends alerts through a rate-limited async queue.
type TelegramNotifier struct {
	bot      sender
	chatID   int64
	interval time.Duration

	mu       sync.Mutex
	lastSend time.Time

	queue     chan queuedMessage
	queueDone chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

// NewTelegramNotifier creates a new Telegram notifier. It returns nil when
// the bot cannot be reached.
func NewTelegramNotifier(token string, chatID int64) *TelegramNotifier {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("Failed to create telegram bot", "error", err)
		return nil
	}
	bot.Debug = false

	n := newTelegramNotifier(bot, chatID, telegramSendInterval)
	slog.Info("Telegram notifier initialized", "chat_id", chatID, "bot", bot.Self.UserName)
	return n
}

func newTelegramNotifier(bot sender, chatID int64, interval time.Duration) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		interval:  interval,
		queue:     make(chan queuedMessage, 100), // Buffer up to 100 messages
		queueDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go n.messageSender()
	return n
}

// NotifyValueLines queues one message per chunk of value lines (non-blocking).
func (n *TelegramNotifier) NotifyValueLines(ctx context.Context, lines []models.BettingLine) error {
	for start := 0; start < len(lines); start += maxLinesPerMessage {
		end := min(start+maxLinesPerMessage, len(lines))
		chunk := lines[start:end]
		msg := queuedMessage{msgType: messageTypeValue, text: formatValueAlert(chunk), lineCount: len(chunk)}
		if err := n.enqueue(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// NotifyNewEntities queues a review digest of entities created this run.
func (n *TelegramNotifier) NotifyNewEntities(ctx context.Context, entities []models.CanonicalEntity) error {
	if len(entities) == 0 {
		return nil
	}
	return n.enqueue(ctx, queuedMessage{msgType: messageTypeEntities, text: formatEntityDigest(entities), lineCount: len(entities)})
}

func (n *TelegramNotifier) enqueue(ctx context.Context, msg queuedMessage) error {
	if n.ctx.Err() != nil {
		return fmt.Errorf("notifier stopped")
	}
	msg.queuedAt = time.Now()
	select {
	case <-n.ctx.Done():
		return fmt.Errorf("notifier stopped")
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- msg:
		return nil
	default:
		// Queue is full, log warning but don't block
		slog.Warn("Telegram message queue is full, dropping message", "type", msg.msgType)
		return fmt.Errorf("message queue is full")
	}
}

// messageSender runs in background and sends queued messages with proper intervals
func (n *TelegramNotifier) messageSender() {
	defer close(n.queueDone)
	for {
		select {
		case <-n.ctx.Done():
			// Drain remaining messages before exit
			for {
				select {
				case msg := <-n.queue:
					n.send(msg)
				default:
					return
				}
			}
		case msg := <-n.queue:
			n.send(msg)
		}
	}
}

func (n *TelegramNotifier) send(msg queuedMessage) {
	n.mu.Lock()
	if wait := n.interval - time.Since(n.lastSend); wait > 0 {
		n.mu.Unlock()
		time.Sleep(wait)
		n.mu.Lock()
	}
	n.lastSend = time.Now()
	n.mu.Unlock()

	tgMsg := tgbotapi.NewMessage(n.chatID, msg.text)
	tgMsg.ParseMode = tgbotapi.ModeMarkdown
	tgMsg.DisableWebPagePreview = true

	if _, err := n.bot.Send(tgMsg); err != nil {
		slog.Error("Telegram send: failed", "type", msg.msgType, "items", msg.lineCount, "error", err)
		return
	}
	slog.Info("Telegram send: success", "type", msg.msgType, "items", msg.lineCount,
		"delay_since_queued", time.Since(msg.queuedAt), "queue_length", len(n.queue))
}

// Stop stops the notifier and waits for all queued messages to be sent
func (n *TelegramNotifier) Stop() {
	if n == nil {
		return
	}
	n.stopOnce.Do(n.cancel)
	<-n.queueDone
}

func formatValueAlert(lines []models.BettingLine) string {
	var b strings.Builder
	b.WriteString("📈 *+EV lines*\n")
	for _, l := range lines {
		b.WriteString("\n")
		fmt.Fprintf(&b, "*%s* %s %s %s", escapeMarkdown(l.Subject), escapeMarkdown(l.Label), formatLine(l.Line), escapeMarkdown(l.Market))
		fmt.Fprintf(&b, "\n🏠 %s | %s", escapeMarkdown(l.Bookmaker), escapeMarkdown(l.League))
		if l.Game != nil && l.Game.ID != "" {
			fmt.Fprintf(&b, " | %s", escapeMarkdown(l.Game.ID))
		}
		fmt.Fprintf(&b, "\nOdds *%.2f*", l.Odds)
		if l.Metrics != nil {
			if l.Metrics.TwPrb != nil {
				fmt.Fprintf(&b, " · true prob *%.1f%%*", *l.Metrics.TwPrb*100)
			}
			if l.Metrics.EV != nil {
				fmt.Fprintf(&b, " · EV *%+.1f%%*", *l.Metrics.EV*100)
			}
			if l.Metrics.EVFormula != "" {
				fmt.Fprintf(&b, " (%s)", escapeMarkdown(l.Metrics.EVFormula))
			}
		}
		if l.URL != "" {
			fmt.Fprintf(&b, "\n[open](%s)", l.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatEntityDigest(entities []models.CanonicalEntity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 *%d new entities to review*\n\n", len(entities))
	for _, e := range entities {
		fmt.Fprintf(&b, "• %s / %s: *%s*", e.Kind, escapeMarkdown(e.Domain), escapeMarkdown(e.CanonicalName))
		if e.TeamAbbr != "" {
			fmt.Fprintf(&b, " (%s)", escapeMarkdown(e.TeamAbbr))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatLine(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

// escapeMarkdown escapes the characters legacy Markdown mode treats specially.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`")
	return r.Replace(s)
}
