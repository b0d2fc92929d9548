package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	telegramAPIBase = "https://api.telegram.org/bot%s/%s"

	// longPollTimeout is the server-side getUpdates hold time in seconds.
	longPollTimeout = 25

	// replyTimeout bounds how long a command waits for the engine. The
	// engine drains commands between scan cycles, so this must exceed
	// the scan interval.
	replyTimeout = 90 * time.Second
)

// Poller long-polls Telegram for updates, parses operator commands from the
// allowed chat, and forwards them to the sink channel.
type Poller struct {
	botToken string
	chatID   int64
	sink     chan<- Command
	client   *http.Client
	logger   *slog.Logger
	offset   int64
}

// NewPoller creates a poller. chatID is the only chat allowed to issue
// commands; messages from any other chat are ignored.
func NewPoller(botToken, chatID string, sink chan<- Command, logger *slog.Logger) (*Poller, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing telegram chat ID: %w", err)
	}
	return &Poller{
		botToken: botToken,
		chatID:   id,
		sink:     sink,
		client: &http.Client{
			Timeout: (longPollTimeout + 10) * time.Second,
		},
		logger: logger,
	}, nil
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type getUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("telegram poller started", "chat_id", p.chatID)
	for {
		updates, err := p.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("telegram poll failed", "error", err)
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			p.handleUpdate(ctx, u)
		}
	}
}

func (p *Poller) handleUpdate(ctx context.Context, u update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	if u.Message.Chat.ID != p.chatID {
		p.logger.Warn("ignoring message from unauthorized chat", "chat_id", u.Message.Chat.ID)
		return
	}

	cmd, err := ParseCommand(u.Message.Text)
	if err != nil {
		p.reply(ctx, err.Error())
		return
	}
	p.logger.Info("operator command received", "command", cmd.Kind.String(), "instrument", cmd.Instrument)

	select {
	case p.sink <- cmd:
	case <-ctx.Done():
		return
	}

	// Wait for the engine's response off the polling loop so a slow
	// cycle does not stall update delivery.
	go func() {
		select {
		case text := <-cmd.Reply:
			p.reply(ctx, text)
		case <-time.After(replyTimeout):
			p.reply(ctx, fmt.Sprintf("command /%s timed out", cmd.Kind))
		case <-ctx.Done():
		}
	}()
}

func (p *Poller) getUpdates(ctx context.Context) ([]update, error) {
	url := fmt.Sprintf(telegramAPIBase, p.botToken, "getUpdates")
	url += fmt.Sprintf("?offset=%d&timeout=%d&allowed_updates=[\"message\"]", p.offset, longPollTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating getUpdates request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling telegram updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram getUpdates status %d", resp.StatusCode)
	}

	var parsed getUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding telegram updates: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram getUpdates returned not ok")
	}
	return parsed.Result, nil
}

func (p *Poller) reply(ctx context.Context, text string) {
	msg := sendMessageRequest{ChatID: p.chatID, Text: text, ParseMode: "HTML"}
	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("marshal telegram reply failed", "error", err)
		return
	}

	url := fmt.Sprintf(telegramAPIBase, p.botToken, "sendMessage")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("telegram reply failed", "error", err)
		return
	}
	resp.Body.Close()
}
