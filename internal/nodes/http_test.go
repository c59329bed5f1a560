package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/automateos/internal/domain"
)

func TestHTTPRequestNode_ValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"url": "https://api.example.com", "method": "GET"}, false},
		{"templated path", map[string]any{"url": "https://api.example.com/{{id}}", "method": "post"}, false},
		{"custom timeout", map[string]any{"url": "http://x.io", "method": "GET", "timeout": 5}, false},
		{"missing url", map[string]any{"method": "GET"}, true},
		{"missing method", map[string]any{"url": "https://api.example.com"}, true},
		{"relative url", map[string]any{"url": "/path", "method": "GET"}, true},
		{"no scheme", map[string]any{"url": "api.example.com", "method": "GET"}, true},
		{"bad method", map[string]any{"url": "https://api.example.com", "method": "FETCH"}, true},
		{"zero timeout", map[string]any{"url": "https://api.example.com", "method": "GET", "timeout": 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPRequestNode("http", tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPRequestNode_DefaultTimeout(t *testing.T) {
	node, err := NewHTTPRequestNode("http", map[string]any{"url": "https://x.io", "method": "GET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.(*HTTPRequestNode).timeout != 30*time.Second {
		t.Errorf("default timeout = %v", node.(*HTTPRequestNode).timeout)
	}
}

func TestHTTPRequestNode_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/users/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer server.Close()

	node, err := NewHTTPRequestNode("fetch", map[string]any{
		"method": "GET",
		"url":    server.URL + "/users/{{payload.user_id}}",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := node.Execute(context.Background(), map[string]any{
		"payload": map[string]any{"user_id": "42"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out["status_code"] != 200 {
		t.Errorf("expected status_code 200, got %v", out["status_code"])
	}
	if out["success"] != true {
		t.Errorf("expected success, got %v", out["success"])
	}

	resp := out["response"].(map[string]any)
	body, ok := resp["json"].(map[string]any)
	if !ok {
		t.Fatalf("expected json to be map, got %T", resp["json"])
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
	if resp["url"] != server.URL+"/users/42" {
		t.Errorf("response url = %v", resp["url"])
	}
	if resp["headers"].(map[string]any)["Content-Type"] != "application/json" {
		t.Errorf("headers = %v", resp["headers"])
	}

	req := out["request"].(map[string]any)
	if req["url"] != server.URL+"/users/42" || req["method"] != "GET" {
		t.Errorf("request = %v", req)
	}
}

func TestHTTPRequestNode_POST_JSON(t *testing.T) {
	var receivedBody map[string]any
	var contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&receivedBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	node, _ := NewHTTPRequestNode("create", map[string]any{
		"method": "POST",
		"url":    server.URL,
		"body": map[string]any{
			"name":  "{{payload.name}}",
			"value": 42,
			"tags":  []any{"{{payload.tag}}"},
		},
	})

	out, err := node.Execute(context.Background(), map[string]any{
		"payload": map[string]any{"name": "test", "tag": "vip"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out["status_code"] != 201 {
		t.Errorf("expected status_code 201, got %v", out["status_code"])
	}
	if contentType != "application/json" {
		t.Errorf("expected default Content-Type, got %q", contentType)
	}
	if receivedBody["name"] != "test" {
		t.Errorf("expected name 'test', got %v", receivedBody["name"])
	}
	if tags := receivedBody["tags"].([]any); tags[0] != "vip" {
		t.Errorf("expected tag vip, got %v", tags)
	}
	if out["response"].(map[string]any)["json"].(map[string]any)["id"] != float64(123) {
		t.Errorf("json not parsed without content type")
	}
}

func TestHTTPRequestNode_StringBody(t *testing.T) {
	var raw string
	var contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
	}))
	defer server.Close()

	// Строка, похожая на JSON, разбирается
	node, _ := NewHTTPRequestNode("json_string", map[string]any{
		"method": "POST",
		"url":    server.URL,
		"body":   `{"id": "{{payload.id}}"}`,
	})
	out, err := node.Execute(context.Background(), map[string]any{"payload": map[string]any{"id": "7"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if body, ok := out["request"].(map[string]any)["body"].(map[string]any); !ok || body["id"] != "7" {
		t.Errorf("request body = %v", out["request"].(map[string]any)["body"])
	}

	// Обычная строка отправляется как есть
	node, _ = NewHTTPRequestNode("text", map[string]any{
		"method":  "PUT",
		"url":     server.URL,
		"body":    "hello {{payload.id}}",
		"headers": map[string]any{"Content-Type": "text/plain"},
	})
	if _, err := node.Execute(context.Background(), map[string]any{"payload": map[string]any{"id": "7"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != "hello 7" {
		t.Errorf("body = %q", raw)
	}
	if contentType != "text/plain" {
		t.Errorf("Content-Type = %q", contentType)
	}
}

func TestHTTPRequestNode_Headers(t *testing.T) {
	var receivedAuth, receivedCustom string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		receivedCustom = r.Header.Get("X-Tenant")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	node, _ := NewHTTPRequestNode("auth", map[string]any{
		"method": "GET",
		"url":    server.URL,
		"headers": map[string]any{
			"Authorization":      "Bearer {{payload.token}}",
			"{{payload.header}}": "acme",
		},
	})

	_, err := node.Execute(context.Background(), map[string]any{
		"payload": map[string]any{"token": "secret123", "header": "X-Tenant"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedAuth != "Bearer secret123" {
		t.Errorf("expected auth header, got %s", receivedAuth)
	}
	if receivedCustom != "acme" {
		t.Errorf("expected templated header key, got %q", receivedCustom)
	}
}

func TestHTTPRequestNode_ErrorStatusIsNotFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	node, _ := NewHTTPRequestNode("fail", map[string]any{"method": "GET", "url": server.URL})

	out, err := node.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("5xx must not be a node error: %v", err)
	}
	if out["status_code"] != 500 || out["success"] != false {
		t.Errorf("unexpected output: status=%v success=%v", out["status_code"], out["success"])
	}
	if out["response"].(map[string]any)["text"] != "nope\n" {
		t.Errorf("text = %q", out["response"].(map[string]any)["text"])
	}
}

func TestHTTPRequestNode_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	node, _ := NewHTTPRequestNode("slow", map[string]any{
		"method":  "GET",
		"url":     server.URL,
		"timeout": 0.1,
	})

	start := time.Now()
	_, err := node.Execute(context.Background(), map[string]any{})
	if time.Since(start) > time.Second {
		t.Errorf("request was not bounded by timeout: %v", time.Since(start))
	}

	var nodeErr *domain.NodeExecutionError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected NodeExecutionError, got %v", err)
	}
	if nodeErr.Details["error_type"] != ErrorTypeTimeout {
		t.Errorf("error_type = %v", nodeErr.Details["error_type"])
	}
	if nodeErr.Details["timeout"] != 0.1 {
		t.Errorf("timeout = %v", nodeErr.Details["timeout"])
	}
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("expected ErrRequestTimeout, got %v", err)
	}
}

func TestHTTPRequestNode_UnreachableHost(t *testing.T) {
	// Занимаем порт и сразу освобождаем: соединение будет отклонено.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	node, _ := NewHTTPRequestNode("down", map[string]any{
		"method":  "GET",
		"url":     "http://" + addr,
		"timeout": 2,
	})

	start := time.Now()
	_, err = node.Execute(context.Background(), map[string]any{})
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("request exceeded timeout bound: %v", elapsed)
	}

	var nodeErr *domain.NodeExecutionError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected NodeExecutionError, got %v", err)
	}
	if nodeErr.Details["error_type"] != ErrorTypeConnection {
		t.Errorf("error_type = %v", nodeErr.Details["error_type"])
	}
	if !errors.Is(err, ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "x.invalid"}, ErrorTypeConnection},
		{"op", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrorTypeConnection},
		{"other", errors.New("unsupported protocol scheme"), ErrorTypeRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %s, want %s", got, tt.want)
			}
		})
	}
}
