package dreo

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	openAPIURL = "https://open-api-%s.dreo-tech.com"

	openClientID     = "89ef537b2202481aaaf9077068bcb0c9"
	openClientSecret = "8c2a9452fa6743fcaf1f4b9f4b1b0f5e"

	userAgent = "dreoverse-bridge"

	devicePageSize = 100

	codeOK           = 0
	codeTokenExpired = 401
)

// Region slugs accepted by the API hosts, keyed by the suffix the
// open-api token carries.
var regionSlugs = map[string]string{
	"NA": "us",
	"US": "us",
	"EU": "eu",
}

// ErrAuth indicates the cloud rejected the credentials. Transport problems
// are returned as wrapped errors instead, so callers can tell a bad
// password from an unreachable API.
var ErrAuth = errors.New("dreo: invalid username or password")

// BusinessError is a non-zero application code in an otherwise successful
// HTTP exchange.
type BusinessError struct {
	Code int
	Msg  string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("dreo: api error %d: %s", e.Code, e.Msg)
}

// Client talks to the Dreo open API. It holds the session token and
// re-logs-in once when the server reports it expired.
type Client struct {
	username     string
	passwordHash string

	httpClient *http.Client
	log        *zap.SugaredLogger

	baseURL string // overridable for tests
	token   string
	region  string
}

// NewClient creates a client for the given account. The password is stored
// only as its MD5 digest, which is what the login endpoint expects.
func NewClient(username, password string, log *zap.SugaredLogger) *Client {
	return &Client{
		username:     username,
		passwordHash: HashPassword(password),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		log:          log,
		region:       "NA",
	}
}

// HashPassword returns the MD5 hex digest the login endpoints expect.
func HashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Resume restores a persisted session instead of logging in. The token is
// verified lazily: the first call that fails with a token-expired code
// triggers a fresh login.
func (c *Client) Resume(s Session) {
	c.token = s.AccessToken
	if s.Region != "" {
		c.region = s.Region
	}
}

// Session returns the current session for persistence.
func (c *Client) Session() Session {
	return Session{AccessToken: c.token, Region: c.region}
}

// RegionSlug returns the host slug ("us", "eu") for the session region.
func (c *Client) RegionSlug() string {
	if slug, ok := regionSlugs[strings.ToUpper(c.region)]; ok {
		return slug
	}
	return "us"
}

// PasswordHash exposes the hashed password for the app-api login, which
// uses the same digest.
func (c *Client) PasswordHash() string {
	return c.passwordHash
}

// Login authenticates and stores the access token. The token carries a
// region suffix ("<token>:NA") which selects the API hosts for the rest of
// the session.
func (c *Client) Login(ctx context.Context) error {
	body := map[string]any{
		"client_id":     openClientID,
		"client_secret": openClientSecret,
		"grant_type":    "password",
		"email":         c.username,
		"password":      c.passwordHash,
		"scope":         "all",
	}

	var data loginData
	err := c.post(ctx, "/api/oauth/login", body, &data)
	var berr *BusinessError
	if errors.As(err, &berr) {
		return fmt.Errorf("%w: %s", ErrAuth, berr.Msg)
	}
	if err != nil {
		return err
	}
	if data.AccessToken == "" {
		return fmt.Errorf("dreo: login response missing access token")
	}

	c.token = data.AccessToken
	if i := strings.LastIndex(data.AccessToken, ":"); i >= 0 {
		c.region = data.AccessToken[i+1:]
	}
	c.log.Infow("logged in to dreo cloud", "region", c.region)
	return nil
}

// GetDevices fetches the full device list, following pagination.
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var all []Device
	for page := 1; ; page++ {
		q := url.Values{
			"pageSize":    {strconv.Itoa(devicePageSize)},
			"currentPage": {strconv.Itoa(page)},
		}

		var data deviceListData
		if err := c.get(ctx, "/api/v2/user-device/device/list", q, &data); err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}

		for _, d := range data.List {
			if d.SN == "" || d.Model == "" || d.DeviceType == "" {
				c.log.Warnw("skipping device with incomplete identity",
					"sn", d.SN, "model", d.Model, "type", d.DeviceType)
				continue
			}
			all = append(all, d)
		}

		if len(all) >= data.TotalNum || len(data.List) == 0 {
			break
		}
	}
	return all, nil
}

// GetStatus fetches the current directive map for one device. Values the
// API wraps as {"state": v, "timestamp": …} are unwrapped to the bare
// value so the rest of the bridge sees a flat map.
func (c *Client) GetStatus(ctx context.Context, sn string) (map[string]any, error) {
	q := url.Values{"deviceSn": {sn}}

	var data statusData
	if err := c.get(ctx, "/api/user-device/device/state", q, &data); err != nil {
		return nil, fmt.Errorf("get status for %s: %w", sn, err)
	}
	return unwrapMixed(data.Mixed), nil
}

// UpdateStatus sends desired directive values to a device. The echoed
// authoritative state arrives through the next poll or WebSocket push.
func (c *Client) UpdateStatus(ctx context.Context, sn string, directives map[string]any) error {
	body := map[string]any{
		"devicesn": sn,
		"desired":  directives,
	}
	if err := c.post(ctx, "/api/device/control", body, nil); err != nil {
		return fmt.Errorf("update status for %s: %w", sn, err)
	}
	return nil
}

func unwrapMixed(mixed map[string]any) map[string]any {
	state := make(map[string]any, len(mixed))
	for k, v := range mixed {
		if wrapped, ok := v.(map[string]any); ok {
			if inner, ok := wrapped["state"]; ok {
				state[k] = inner
				continue
			}
		}
		state[k] = v
	}
	return state
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, out, true)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any, retryAuth bool) error {
	base := c.baseURL
	if base == "" {
		base = fmt.Sprintf(openAPIURL, c.RegionSlug())
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path+"?"+q.Encode(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("TraceId", uuid.NewString())
	if c.token != "" && path != "/api/oauth/login" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code != codeOK {
		if envelope.Code == codeTokenExpired && retryAuth && path != "/api/oauth/login" {
			c.log.Infow("session expired, logging in again")
			if err := c.Login(ctx); err != nil {
				return err
			}
			return c.do(ctx, method, path, q, body, out, false)
		}
		return &BusinessError{Code: envelope.Code, Msg: envelope.Msg}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
