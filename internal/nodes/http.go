package nodes

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/shaiso/automateos/internal/engine"
)

const (
	// TypeHTTPRequest — тег узла HTTP запроса.
	TypeHTTPRequest = "http_request"

	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Ключи конфигурации HTTP узла.
const (
	configMethod          = "method"
	configURL             = "url"
	configHeaders         = "headers"
	configBody            = "body"
	configTimeout         = "timeout"
	configFollowRedirects = "follow_redirects"
	configValidateSSL     = "validate_ssl"
)

// Классы транспортных ошибок (details.error_type).
const (
	ErrorTypeTimeout    = "timeout"
	ErrorTypeConnection = "connection"
	ErrorTypeRequest    = "request"
)

// HTTPRequestNode — узел HTTP запроса.
//
// Выполняет один запрос к внешнему API. Шаблоны {{...}} подставляются
// в url, заголовки (ключи и значения) и body.
//
// Конфигурация:
//
//	{
//	    "method": "POST",
//	    "url": "https://api.example.com/users/{{payload.user_id}}",
//	    "headers": {"Authorization": "Bearer {{payload.token}}"},
//	    "body": {"name": "{{payload.name}}"},
//	    "timeout": 30
//	}
//
// Выход:
//
//	{
//	    "request":  {"url": ..., "method": ..., "headers": {...}, "body": ...},
//	    "response": {"status_code": 200, "headers": {...}, "text": "...",
//	                 "json": {...} | null, "ok": true, "url": "..."},
//	    "status_code": 200,
//	    "success": true
//	}
//
// Ответ 4xx/5xx не является ошибкой узла: success = false.
// Ошибкой являются только таймаут, ошибка соединения и прочие
// транспортные ошибки.
type HTTPRequestNode struct {
	base

	method  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPRequestNode создаёт и валидирует HTTPRequestNode.
func NewHTTPRequestNode(id string, config map[string]any) (Node, error) {
	n := &HTTPRequestNode{base: newBase(id, TypeHTTPRequest, config)}
	if err := n.ValidateConfig(); err != nil {
		return nil, err
	}
	n.client = n.buildClient()
	return n, nil
}

// ValidateConfig проверяет url, method и timeout.
func (n *HTTPRequestNode) ValidateConfig() error {
	for _, field := range []string{configURL, configMethod} {
		if err := n.requireField(field); err != nil {
			return err
		}
	}

	rawURL := GetConfigString(n.config, configURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return n.fail(fmt.Sprintf("Invalid URL format: %s", rawURL),
			map[string]any{"invalid_url": rawURL}, ErrInvalidConfig)
	}

	method, err := n.checkMethod(n.config[configMethod])
	if err != nil {
		return err
	}
	n.method = method

	n.timeout = defaultHTTPTimeout
	if _, ok := n.config[configTimeout]; ok {
		sec := GetConfigFloat(n.config, configTimeout)
		if sec <= 0 {
			return n.fail(fmt.Sprintf("Invalid timeout: %v", n.config[configTimeout]),
				map[string]any{"invalid_timeout": n.config[configTimeout]}, ErrInvalidConfig)
		}
		n.timeout = time.Duration(sec * float64(time.Second))
	}

	return nil
}

// buildClient создаёт HTTP клиент с нужными настройками.
func (n *HTTPRequestNode) buildClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !GetConfigBool(n.config, configValidateSSL, true),
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if !GetConfigBool(n.config, configFollowRedirects, true) {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Timeout:       n.timeout,
		CheckRedirect: checkRedirect,
		Transport:     transport,
	}
}

// Execute выполняет HTTP запрос.
func (n *HTTPRequestNode) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	reqURL := engine.Resolve(GetConfigString(n.config, configURL), input)
	headers := n.resolveHeaders(input)
	body, hasBody := n.resolveBody(input)

	if hasBody && !hasHeader(headers, "Content-Type") && isJSONBody(n.config[configBody]) {
		headers["Content-Type"] = "application/json"
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	httpReq, err := n.buildRequest(ctx, reqURL, headers, body, hasBody)
	if err != nil {
		return nil, n.fail(fmt.Sprintf("HTTP request failed: %v", err),
			map[string]any{"url": reqURL, "error": err.Error(), "error_type": ErrorTypeRequest}, ErrRequest)
	}

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, n.transportError(reqURL, err)
	}
	defer resp.Body.Close()

	response, err := n.parseResponse(resp)
	if err != nil {
		return nil, n.transportError(reqURL, err)
	}

	requestHeaders := make(map[string]any, len(headers))
	for k, v := range headers {
		requestHeaders[k] = v
	}

	return map[string]any{
		"request": map[string]any{
			"url":     reqURL,
			"method":  n.method,
			"headers": requestHeaders,
			"body":    body,
		},
		"response":    response,
		"status_code": resp.StatusCode,
		"success":     response["ok"],
	}, nil
}

// resolveHeaders подставляет шаблоны в ключи и значения заголовков.
func (n *HTTPRequestNode) resolveHeaders(input map[string]any) map[string]string {
	raw := GetConfigMapString(n.config, configHeaders)
	headers := make(map[string]string, len(raw))
	for k, v := range raw {
		headers[engine.Resolve(k, input)] = engine.Resolve(v, input)
	}
	return headers
}

// resolveBody подставляет шаблоны в body.
// Строка, похожая на JSON, разбирается в объект или массив.
func (n *HTTPRequestNode) resolveBody(input map[string]any) (any, bool) {
	raw, ok := n.config[configBody]
	if !ok || raw == nil {
		return nil, false
	}

	s, isString := raw.(string)
	if !isString {
		return engine.ResolveValue(raw, input), true
	}

	resolved := engine.Resolve(s, input)
	trimmed := strings.TrimSpace(resolved)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed, true
		}
	}
	return resolved, true
}

// isJSONBody: Content-Type по умолчанию ставится для объектов,
// массивов и строк, начинающихся с '{'.
func isJSONBody(raw any) bool {
	switch v := raw.(type) {
	case map[string]any, []any:
		return true
	case string:
		return strings.HasPrefix(strings.TrimSpace(v), "{")
	default:
		return false
	}
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// buildRequest создаёт HTTP запрос.
func (n *HTTPRequestNode) buildRequest(ctx context.Context, reqURL string, headers map[string]string, body any, hasBody bool) (*http.Request, error) {
	var bodyReader io.Reader
	if hasBody {
		bodyBytes, err := serializeBody(body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, n.method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// parseResponse собирает описание ответа.
func (n *HTTPRequestNode) parseResponse(resp *http.Response) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var parsed any
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		parsed = nil
	}

	headers := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}

	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"text":        string(bodyBytes),
		"json":        parsed,
		"ok":          resp.StatusCode < http.StatusBadRequest,
		"url":         finalURL,
	}, nil
}

// transportError классифицирует ошибку запроса: timeout, connection или request.
func (n *HTTPRequestNode) transportError(reqURL string, err error) error {
	switch ClassifyError(err) {
	case ErrorTypeTimeout:
		return n.fail(fmt.Sprintf("HTTP request timed out after %v seconds", n.timeout.Seconds()),
			map[string]any{"url": reqURL, "timeout": n.timeout.Seconds(), "error_type": ErrorTypeTimeout},
			fmt.Errorf("%w: %v", ErrRequestTimeout, err))

	case ErrorTypeConnection:
		return n.fail(fmt.Sprintf("Connection error: %v", err),
			map[string]any{"url": reqURL, "error": err.Error(), "error_type": ErrorTypeConnection},
			fmt.Errorf("%w: %v", ErrConnection, err))

	default:
		return n.fail(fmt.Sprintf("HTTP request failed: %v", err),
			map[string]any{"url": reqURL, "error": err.Error(), "error_type": ErrorTypeRequest},
			fmt.Errorf("%w: %v", ErrRequest, err))
	}
}

// ClassifyError относит ошибку HTTP клиента к одному из классов
// ErrorTypeTimeout, ErrorTypeConnection, ErrorTypeRequest.
func ClassifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorTypeConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorTypeConnection
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrorTypeConnection
	}

	return ErrorTypeRequest
}
