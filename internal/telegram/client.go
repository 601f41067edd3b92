package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tryon-studio/internal/tryon"
)

const (
	maxMessageBytes = 4096
	maxCaptionBytes = 1024
	// Bot API download limit for getFile.
	maxDownloadBytes = 20 << 20
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool
}

type Client struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		bot:        bot,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

type Update = tgbotapi.Update

type UpdatesOptions struct {
	Timeout time.Duration
}

func (c *Client) Updates(opts UpdatesOptions) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	if opts.Timeout > 0 {
		u.Timeout = int(opts.Timeout.Seconds())
	} else {
		u.Timeout = 30
	}
	u.AllowedUpdates = []string{"message", "callback_query"}
	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendTyping(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

func (c *Client) SendUploadingPhoto(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto))
}

func (c *Client) SendText(chatID int64, text string) error {
	parts := splitByBytes(text, maxMessageBytes)
	for _, p := range parts {
		msg := tgbotapi.NewMessage(chatID, p)
		if _, err := c.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) SendTextWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, truncateByBytes(text, maxMessageBytes))
	msg.ReplyMarkup = keyboard
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) EditKeyboard(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error {
	_, err := c.bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, keyboard))
	return err
}

func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert
	_, err := c.bot.Request(cfg)
	return err
}

func (c *Client) SendPhoto(chatID int64, img tryon.ImagePart, caption string) error {
	if len(img.Data) == 0 {
		return errors.New("empty photo")
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  fileName(img.MediaType),
		Bytes: img.Data,
	})
	if caption != "" {
		photo.Caption = truncateByBytes(caption, maxCaptionBytes)
	}

	_, err := c.bot.Send(photo)
	return err
}

func (c *Client) DownloadPhoto(ctx context.Context, fileID string) (tryon.UploadedImage, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return tryon.UploadedImage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return tryon.UploadedImage{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tryon.UploadedImage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return tryon.UploadedImage{}, fmt.Errorf("telegram file download %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return tryon.UploadedImage{}, err
	}
	if len(data) > maxDownloadBytes {
		return tryon.UploadedImage{}, errors.New("telegram file is too large")
	}

	c.logger.Debug("telegram file downloaded", "file_id", fileID, "bytes", len(data))
	return tryon.NewUploadedImage(data, resp.Header.Get("content-type")), nil
}

func fileName(mediaType string) string {
	name := "tryon.jpg"
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		name = "tryon" + exts[0]
	}
	return name
}

func splitByBytes(text string, maxBytes int) []string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	buf.Grow(maxBytes)

	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len() > 0 && buf.Len()+runeBytes > maxBytes {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		out = append(out, buf.String())
	}

	return out
}

func truncateByBytes(text string, maxBytes int) string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return text
	}

	var buf strings.Builder
	buf.Grow(maxBytes)
	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len()+runeBytes > maxBytes {
			break
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
