package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"Circle_Social/internal/model"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Msg)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Patch 整体替换的字段，nil 表示不修改
type Patch struct {
	Reactions *[]model.Reaction `json:"reactions,omitempty"`
	Favorites *[]model.Favorite `json:"favorites,omitempty"`
}

type NewMessage struct {
	Content     string `json:"content"`
	Circle      string `json:"circle,omitempty"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// Transport 是 Manager 访问服务端的接口
type Transport interface {
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessages(ctx context.Context, circle string) ([]model.Message, error)
	CreateMessage(ctx context.Context, in NewMessage) (*model.Message, error)
	PatchMessage(ctx context.Context, id string, p Patch) (*model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	GetCircle(ctx context.Context, id string) (*model.Circle, error)
	JoinCircle(ctx context.Context, id string) (model.MemberStatus, error)
}

type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// HTTPTransport 基于 REST 接口实现 Transport，5xx 和网络错误计入熔断
type HTTPTransport struct {
	baseURL string
	token   string
	hc      *http.Client
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewHTTPTransport(baseURL, token string, cfg BreakerConfig, log *zap.Logger) *HTTPTransport {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	st := gobreaker.Settings{
		Name:        "circle-api",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{},
		cb:      gobreaker.NewCircuitBreaker(st),
		log:     log,
	}
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	res, err := t.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if t.token != "" {
			req.Header.Set("Authorization", "Bearer "+t.token)
		}
		resp, err := t.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode}
			var eb struct {
				Msg  string `json:"msg"`
				Code string `json:"code"`
			}
			if json.Unmarshal(data, &eb) == nil {
				apiErr.Msg, apiErr.Code = eb.Msg, eb.Code
			}
			if resp.StatusCode >= 500 {
				return nil, apiErr
			}
			// 4xx 是业务结果，不计入熔断
			return apiErr, nil
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ErrCircuitOpen
		}
		t.log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return err
	}
	switch v := res.(type) {
	case *APIError:
		return v
	case []byte:
		if out == nil || len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, out)
	}
	return errors.New("invalid response")
}

func (t *HTTPTransport) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := t.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// listPageSize 与服务端单页上限一致
const listPageSize = 50

// ListMessages 按服务端游标逐页拉取，直到最后一页
func (t *HTTPTransport) ListMessages(ctx context.Context, circle string) ([]model.Message, error) {
	q := url.Values{"size": {strconv.Itoa(listPageSize)}}
	if circle != "" {
		q.Set("circle", circle)
	}
	var all []model.Message
	for {
		var out struct {
			List          []model.Message `json:"list"`
			NextLastID    string          `json:"next_last_id"`
			NextCreatedAt string          `json:"next_created_at"`
		}
		if err := t.do(ctx, http.MethodGet, "/api/messages?"+q.Encode(), nil, &out); err != nil {
			return nil, err
		}
		all = append(all, out.List...)
		if len(out.List) < listPageSize || out.NextLastID == "" {
			return all, nil
		}
		q.Set("last_id", out.NextLastID)
		q.Set("last_created_at", out.NextCreatedAt)
	}
}

func (t *HTTPTransport) CreateMessage(ctx context.Context, in NewMessage) (*model.Message, error) {
	var m model.Message
	if err := t.do(ctx, http.MethodPost, "/api/messages", in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *HTTPTransport) PatchMessage(ctx context.Context, id string, p Patch) (*model.Message, error) {
	var m model.Message
	if err := t.do(ctx, http.MethodPatch, "/api/messages/"+url.PathEscape(id), p, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *HTTPTransport) DeleteMessage(ctx context.Context, id string) error {
	return t.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(id), nil, nil)
}

func (t *HTTPTransport) GetCircle(ctx context.Context, id string) (*model.Circle, error) {
	var c model.Circle
	if err := t.do(ctx, http.MethodGet, "/api/circles/"+url.PathEscape(id), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *HTTPTransport) JoinCircle(ctx context.Context, id string) (model.MemberStatus, error) {
	var out struct {
		Status model.MemberStatus `json:"status"`
	}
	if err := t.do(ctx, http.MethodPost, "/api/circles/"+url.PathEscape(id)+"/join", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
