package dreo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// The WebSocket endpoint only accepts tokens from the app-api login (the
// one the mobile app uses); the open-api token used for REST polling does
// not work there.
const (
	websocketURL = "wss://wsb-%s.dreo-tech.com/websocket"
	appAPIURL    = "https://app-api-%s.dreo-tech.com"
	appLoginPath = "/api/oauth/login"

	appClientID     = "7de37c362ee54dcf9c4561812309347a"
	appClientSecret = "32dfa0764f25451d99f94e1693498791"
	appUserAgent    = "dreo/2.8.2"

	pingInterval   = 15 * time.Second
	pingMessage    = "2"
	reconnectDelay = 5 * time.Second
)

// PushHandler receives partial directive updates for one device.
type PushHandler func(sn string, reported map[string]any)

type pushMessage struct {
	DeviceSN string         `json:"devicesn"`
	Reported map[string]any `json:"reported"`
}

// LoginAppAPI obtains a token the WebSocket endpoint accepts. An empty
// token with a nil error means the app-api refused us; the bridge then
// runs on polling alone.
func LoginAppAPI(ctx context.Context, username, passwordHash, regionSlug string, log *zap.SugaredLogger) (string, error) {
	return loginAppAPI(ctx, fmt.Sprintf(appAPIURL, regionSlug), username, passwordHash, log)
}

func loginAppAPI(ctx context.Context, base, username, passwordHash string, log *zap.SugaredLogger) (string, error) {
	body := map[string]any{
		"acceptLanguage": "en",
		"client_id":      appClientID,
		"client_secret":  appClientSecret,
		"email":          username,
		"encrypt":        "ciphertext",
		"grant_type":     "email-password",
		"password":       passwordHash,
		"scope":          "all",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal app login body: %w", err)
	}

	url := base + appLoginPath + "?timestamp=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create app login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("UA", appUserAgent)
	req.Header.Set("Lang", "en")

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute app login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnw("app-api login failed", "status", resp.StatusCode)
		return "", nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read app login response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("decode app login response: %w", err)
	}
	if envelope.Code != codeOK {
		log.Warnw("app-api login rejected", "code", envelope.Code, "msg", envelope.Msg)
		return "", nil
	}

	var data loginData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return "", fmt.Errorf("decode app login data: %w", err)
	}
	if data.AccessToken != "" {
		log.Info("app-api login succeeded, push channel enabled")
	}
	return data.AccessToken, nil
}

// PushClient maintains the WebSocket connection for real-time device
// updates, reconnecting until stopped.
type PushClient struct {
	token      string
	regionSlug string
	onMessage  PushHandler
	log        *zap.SugaredLogger

	urlOverride string // for tests

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPushClient creates a push client. Token must come from LoginAppAPI.
func NewPushClient(token, regionSlug string, onMessage PushHandler, log *zap.SugaredLogger) *PushClient {
	return &PushClient{
		token:      token,
		regionSlug: regionSlug,
		onMessage:  onMessage,
		log:        log,
	}
}

// Connected reports whether the WebSocket is currently open.
func (p *PushClient) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Start launches the connect loop.
func (p *PushClient) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Stop closes the connection and waits for the loop to exit.
func (p *PushClient) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()

	p.mu.Lock()
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.mu.Unlock()

	<-p.done
}

func (p *PushClient) run(ctx context.Context) {
	defer close(p.done)

	for {
		if err := p.connectAndListen(ctx); err != nil && ctx.Err() == nil {
			p.log.Debugw("push channel disconnected, reconnecting", "error", err, "delay", reconnectDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (p *PushClient) connectAndListen(ctx context.Context) error {
	url := p.urlOverride
	if url == "" {
		url = fmt.Sprintf(websocketURL, p.regionSlug)
	}
	url += "?accessToken=" + p.token + "&timestamp=" + strconv.FormatInt(time.Now().UnixMilli(), 10)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.connected = true
	p.mu.Unlock()

	p.log.Infow("push channel connected", "region", p.regionSlug)

	defer func() {
		p.mu.Lock()
		p.connected = false
		p.conn = nil
		p.mu.Unlock()
		_ = conn.Close()
	}()

	// Keepalive: the server expects a periodic text ping, not a ws ping
	// frame.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.mu.Lock()
				c := p.conn
				p.mu.Unlock()
				if c == nil {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, []byte(pingMessage)); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		p.processMessage(raw)
	}
}

func (p *PushClient) processMessage(raw []byte) {
	var msg pushMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.DeviceSN == "" || len(msg.Reported) == 0 {
		return
	}
	p.log.Debugw("push update", "sn", msg.DeviceSN, "reported", msg.Reported)
	p.onMessage(msg.DeviceSN, msg.Reported)
}
