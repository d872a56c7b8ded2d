// Package notify delivers booking activity to the administrators' Telegram chats.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carrental/internal/domain"
	"carrental/internal/events"
	"carrental/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const queueSize = 256

// Telegram allows about 30 messages per second per bot.
const sendRate = 25

type outgoing struct {
	chatID int64
	text   string
}

// Notifier turns bus events into chat messages. Handlers only enqueue; the
// loop started by Start does the network I/O.
type Notifier struct {
	sender  domain.TelegramSender
	chatIDs []int64
	queue   chan outgoing
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewNotifier(sender domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Notifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "notifier").Logger()
	}
	return &Notifier{
		sender:  sender,
		chatIDs: append([]int64(nil), chatIDs...),
		queue:   make(chan outgoing, queueSize),
		limiter: rate.NewLimiter(rate.Limit(sendRate), 1),
		logger:  l,
	}
}

// NewTelegramSender connects a bot with token.
func NewTelegramSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Subscribe registers the notifier for booking and registration events.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(n.handleBookingEvent, events.BookingEventTypes...)
	bus.Subscribe(n.handleUserEvent, events.EventUserRegistered)
}

func (n *Notifier) handleBookingEvent(event *events.Event) error {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}
	n.Broadcast(formatBookingEvent(event.Type, p))
	return nil
}

func (n *Notifier) handleUserEvent(event *events.Event) error {
	var p events.UserEventPayload
	if err := event.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}
	n.Broadcast(fmt.Sprintf("New account: %s <%s>, role %s", p.Name, p.Email, p.Role))
	return nil
}

// Broadcast queues text for every admin chat. Messages are dropped when the
// queue is full.
func (n *Notifier) Broadcast(text string) {
	for _, id := range n.chatIDs {
		select {
		case n.queue <- outgoing{chatID: id, text: text}:
		default:
			metrics.IncNotification("dropped")
			n.logger.Warn().Int64("chat_id", id).Msg("notification queue full, message dropped")
		}
	}
}

// Start sends queued messages until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	n.logger.Info().Int("chats", len(n.chatIDs)).Msg("started")
	defer n.logger.Info().Msg("stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.queue:
			if err := n.limiter.Wait(ctx); err != nil {
				return
			}
			n.send(msg)
		}
	}
}

func (n *Notifier) send(msg outgoing) {
	if _, err := n.sender.Send(tgbotapi.NewMessage(msg.chatID, msg.text)); err != nil {
		metrics.IncNotification("failed")
		n.logger.Error().Err(err).Int64("chat_id", msg.chatID).Msg("send error")
		return
	}
	metrics.IncNotification("sent")
}

func formatBookingEvent(eventType string, p events.BookingEventPayload) string {
	var title string
	switch eventType {
	case events.EventBookingCreated:
		title = "New booking"
	case events.EventBookingUpdated:
		title = "Booking updated"
	case events.EventBookingDeleted:
		title = "Booking deleted"
	default:
		title = eventType
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", title, p.BookingUID)
	fmt.Fprintf(&sb, "Car: %s\n", p.Car)
	fmt.Fprintf(&sb, "Customer: %s", p.CustomerName)
	if p.MobileNo != "" {
		fmt.Fprintf(&sb, " (%s)", p.MobileNo)
	}
	fmt.Fprintf(&sb, "\nDates: %s to %s\n", p.StartDate, p.EndDate)
	fmt.Fprintf(&sb, "Total: %.2f", p.Total)
	if p.Discount > 0 {
		fmt.Fprintf(&sb, " (discount %.2f)", p.Discount)
	}
	if p.ChangedBy != "" {
		fmt.Fprintf(&sb, "\nBy: %s", p.ChangedBy)
	}
	return sb.String()
}

// timeUntilNext returns the wait until the next hour:minute in loc.
func timeUntilNext(now time.Time, hour, minute int, loc *time.Location) time.Duration {
	now = now.In(loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
