package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/network"
)

// maxResponseBytes caps how much of a reply is read for diagnostics.
const maxResponseBytes = 64 << 10

// Telegram sends messages and photos through the Bot API.
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var (
	_ Transport        = (*Telegram)(nil)
	_ AttachmentSender = (*Telegram)(nil)
)

// TelegramOption adjusts the HTTP client behind a Telegram transport.
type TelegramOption func(*network.ClientConfig)

// WithProxy sends Bot API calls through proxy instead of the environment's proxy.
func WithProxy(proxy *url.URL) TelegramOption {
	return func(c *network.ClientConfig) { c.ProxyURL = proxy }
}

// WithInsecureTLS skips certificate verification, for intercepting proxies.
func WithInsecureTLS() TelegramOption {
	return func(c *network.ClientConfig) { c.IgnoreTLSErrors = true }
}

// NewTelegram returns a Telegram transport. apiBase defaults to the public API.
func NewTelegram(botToken, chatID, apiBase string, timeout time.Duration, opts ...TelegramOption) (*Telegram, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("chat ID is required")
	}
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientCfg := network.ClientConfig{RequestTimeout: timeout, ForceHTTP2: true}
	for _, opt := range opts {
		opt(&clientCfg)
	}
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  strings.TrimRight(apiBase, "/"),
		client:   network.NewClient(clientCfg),
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// SendText posts an HTML formatted message.
func (t *Telegram) SendText(ctx context.Context, text string) (Response, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return Response{}, fmt.Errorf("telegram: encode message: %w", err)
	}
	return t.post(ctx, "sendMessage", "application/json", bytes.NewReader(payload))
}

// SendAttachment uploads the file at path as a photo.
func (t *Telegram) SendAttachment(ctx context.Context, path, caption string) (Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Response{}, fmt.Errorf("telegram: read attachment: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", t.chatID); err != nil {
		return Response{}, err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return Response{}, err
		}
	}
	part, err := mw.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return Response{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Response{}, err
	}
	if err := mw.Close(); err != nil {
		return Response{}, err
	}
	return t.post(ctx, "sendPhoto", mw.FormDataContentType(), &body)
}

func (t *Telegram) post(ctx context.Context, method, contentType string, body io.Reader) (Response, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Response{}, fmt.Errorf("telegram %s: build request: %w", method, t.stripURL(err))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("telegram %s: %w", method, t.stripURL(err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	return Response{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.Status,
		Body:   string(raw),
	}, nil
}

// stripURL drops the request URL, which embeds the bot token, from client errors.
func (t *Telegram) stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func newTelegramFromConfig(tg config.TelegramConfig, timeout time.Duration) (*Telegram, error) {
	var opts []TelegramOption
	proxy, err := tg.ProxyURL()
	if err != nil {
		return nil, fmt.Errorf("invalid proxy: %w", err)
	}
	if proxy != nil {
		opts = append(opts, WithProxy(proxy))
	}
	if tg.IgnoreTLSErrors {
		opts = append(opts, WithInsecureTLS())
	}
	return NewTelegram(tg.BotToken, tg.ChatID, tg.APIBase, timeout, opts...)
}
