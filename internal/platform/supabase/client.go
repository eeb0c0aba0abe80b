package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
)

// ErrNotConfigured 表示没有配置托管后端的地址或密钥
var ErrNotConfigured = errors.New("托管后端未配置 (supabase.url / supabase.anonKey)")

const defaultTimeout = 10 * time.Second

// StatusError 表示托管后端返回了非2xx状态码
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("托管后端返回状态码 %d: %s", e.Code, e.Body)
}

// Client 是 PostgREST 接口的最小客户端，每个请求只尝试一次
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New 根据配置创建客户端，未配置时返回 ErrNotConfigured
func New(cfg config.SupabaseConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewWithHTTPClient(cfg.URL, cfg.AnonKey, &http.Client{Timeout: timeout}), nil
}

// NewWithHTTPClient 使用自定义的 http.Client 创建客户端
func NewWithHTTPClient(baseURL, key string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    hc,
	}
}

func (c *Client) endpoint(table string, query url.Values) string {
	u := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(table, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求托管后端失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析托管后端响应失败: %w", err)
	}
	return nil
}

// Select 执行 GET /rest/v1/<table>?<query>，结果解码到 out
func (c *Client) Select(ctx context.Context, table string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, table, query, nil, out)
}

// Insert 执行 POST /rest/v1/<table>
func (c *Client) Insert(ctx context.Context, table string, row any) error {
	return c.do(ctx, http.MethodPost, table, nil, row, nil)
}

// Update 执行 PATCH /rest/v1/<table>?<filter>
func (c *Client) Update(ctx context.Context, table string, filter url.Values, patch any) error {
	return c.do(ctx, http.MethodPatch, table, filter, patch, nil)
}

// Eq 构造 PostgREST 的等值过滤条件，例如 slug=eq.dune
func Eq(column, value string) url.Values {
	return url.Values{column: []string{"eq." + value}}
}
