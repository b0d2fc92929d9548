package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/journal"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/sendMessage"

// TelegramAlerter sends alerts via the Telegram Bot API.
type TelegramAlerter struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramAlerter creates a new Telegram alerter.
func NewTelegramAlerter(botToken, chatID string) *TelegramAlerter {
	return &TelegramAlerter{
		botToken: botToken,
		chatID:   chatID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the alerter.
func (t *TelegramAlerter) Name() string {
	return "telegram"
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Alert sends an alert to the configured Telegram chat.
func (t *TelegramAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	text := fmt.Sprintf("%s <b>%s</b>\n\n%s", severity.Emoji(), severity.String(), message)
	if formatted := FormatFields(fields...); formatted != "" {
		text += "\n\n" + formatted
	}
	return t.send(ctx, text)
}

// SendDailySummary sends a formatted end-of-day report.
func (t *TelegramAlerter) SendDailySummary(ctx context.Context, report journal.Report, equity decimal.Decimal, openTrades int) error {
	return t.send(ctx, FormatDailySummary(report, equity, openTrades))
}

// SendWeeklySummary sends a formatted weekly report.
func (t *TelegramAlerter) SendWeeklySummary(ctx context.Context, report journal.Report) error {
	return t.send(ctx, FormatWeeklySummary(report))
}

func (t *TelegramAlerter) send(ctx context.Context, text string) error {
	msg := telegramMessage{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling telegram message: %w", err)
	}

	url := fmt.Sprintf(telegramAPIURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return fmt.Errorf("decoding telegram response: %w", err)
	}
	if !tgResp.OK {
		return fmt.Errorf("telegram API error: %s", tgResp.Description)
	}
	return nil
}

// FormatDailySummary renders an end-of-day report as Telegram HTML.
func FormatDailySummary(report journal.Report, equity decimal.Decimal, openTrades int) string {
	text := fmt.Sprintf("📊 <b>Daily Summary — %s</b>\n\n", report.From.Format("2006-01-02"))
	text += fmt.Sprintf("Trades: %d (W %d / L %d)\n", report.TotalTrades, report.Wins, report.Losses)
	if report.TotalTrades > 0 {
		text += fmt.Sprintf("Win rate: %s%%\n", report.WinRate.StringFixed(1))
	}
	text += fmt.Sprintf("Net: %s pips (%s)\n", report.NetPips.StringFixed(1), report.NetPL.StringFixed(2))
	text += fmt.Sprintf("Equity: %s\n", equity.StringFixed(2))
	text += fmt.Sprintf("Open trades: %d", openTrades)
	if report.Best != nil {
		text += fmt.Sprintf("\nBest: %s (%s pips)", report.Best.Instrument, report.Best.NetPips.StringFixed(1))
	}
	if report.Worst != nil {
		text += fmt.Sprintf("\nWorst: %s (%s pips)", report.Worst.Instrument, report.Worst.NetPips.StringFixed(1))
	}
	return text
}

// FormatWeeklySummary renders a weekly report as Telegram HTML.
func FormatWeeklySummary(report journal.Report) string {
	text := fmt.Sprintf("📈 <b>Weekly Summary — %s to %s</b>\n\n",
		report.From.Format("2006-01-02"), report.To.Format("2006-01-02"))
	text += fmt.Sprintf("Trades: %d (W %d / L %d)\n", report.TotalTrades, report.Wins, report.Losses)
	if report.TotalTrades > 0 {
		text += fmt.Sprintf("Win rate: %s%%\n", report.WinRate.StringFixed(1))
	}
	text += fmt.Sprintf("Net: %s pips (%s)", report.NetPips.StringFixed(1), report.NetPL.StringFixed(2))
	if report.Best != nil {
		text += fmt.Sprintf("\nBest: %s (%s pips)", report.Best.Instrument, report.Best.NetPips.StringFixed(1))
	}
	if report.Worst != nil {
		text += fmt.Sprintf("\nWorst: %s (%s pips)", report.Worst.Instrument, report.Worst.NetPips.StringFixed(1))
	}
	return text
}
