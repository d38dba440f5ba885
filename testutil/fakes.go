// =============================================================================
// 🎭 假上游
// =============================================================================
// FakeClient 是 skill.Client 的脚本化假实现：按「方法 + 路径」预置响应
// 队列并录制所有请求，技能单元测试无需真实网络。Upstream 则是基于
// httptest 的真 HTTP 假服务器，用于验证请求头注入与超时等传输行为。
// =============================================================================
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BaSui01/skillflow/skill"
)

// FakeResponse 预置的一条上游响应。Err 非空时 Do 直接返回该错误。
type FakeResponse struct {
	Status int
	Body   string
	Header http.Header
	Err    error
}

// RecordedCall 录制的一次上游请求。
type RecordedCall struct {
	Method string
	Path   string
	Query  string
	Body   string
	Header http.Header
}

// FakeClient 实现 skill.Client。按 "METHOD /path" 匹配预置响应队列：
// 队列多于一条时逐条弹出，只剩一条时重复使用。未匹配的请求返回 404。
type FakeClient struct {
	mu        sync.Mutex
	baseURL   string
	responses map[string][]FakeResponse
	calls     []RecordedCall
}

// NewFakeClient 创建假客户端。
func NewFakeClient() *FakeClient {
	return &FakeClient{
		baseURL:   "http://fake.upstream",
		responses: make(map[string][]FakeResponse),
	}
}

// WithBaseURL 覆盖假客户端的基础地址。
func (f *FakeClient) WithBaseURL(base string) *FakeClient {
	f.baseURL = strings.TrimSuffix(base, "/")
	return f
}

// Stub 为 "method path" 追加一条预置响应。
func (f *FakeClient) Stub(method, path string, resp FakeResponse) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.responses[key] = append(f.responses[key], resp)
	return f
}

// StubJSON 预置一条 JSON 响应。
func (f *FakeClient) StubJSON(method, path string, status int, body string) *FakeClient {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return f.Stub(method, path, FakeResponse{Status: status, Body: body, Header: h})
}

// StubErr 预置一条传输层错误。
func (f *FakeClient) StubErr(method, path string, err error) *FakeClient {
	return f.Stub(method, path, FakeResponse{Err: err})
}

// Do 实现 skill.Client。
func (f *FakeClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		req.Body.Close()
		body = string(data)
	}

	f.mu.Lock()
	f.calls = append(f.calls, RecordedCall{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Body:   body,
		Header: req.Header.Clone(),
	})

	key := req.Method + " " + req.URL.Path
	queue := f.responses[key]
	var resp FakeResponse
	switch {
	case len(queue) == 0:
		resp = FakeResponse{Status: http.StatusNotFound, Body: `{"message":"no stub for ` + key + `"}`}
	case len(queue) == 1:
		resp = queue[0]
	default:
		resp = queue[0]
		f.responses[key] = queue[1:]
	}
	f.mu.Unlock()

	if resp.Err != nil {
		return nil, resp.Err
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	header := resp.Header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header.Clone(),
		Body:       io.NopCloser(strings.NewReader(resp.Body)),
		Request:    req,
	}, nil
}

// BaseURL 实现 skill.Client。
func (f *FakeClient) BaseURL() string { return f.baseURL }

// Calls 返回录制的全部请求副本。
func (f *FakeClient) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// LastCall 返回最后一次录制的请求，没有请求时终止测试。
func (f *FakeClient) LastCall(t *testing.T) RecordedCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no upstream calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

// CallCount 返回录制的请求数。
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Upstream 基于 httptest 的假上游服务器。
type Upstream struct {
	mux    *http.ServeMux
	Server *httptest.Server
}

// NewUpstream 创建假上游并注册清理。
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &Upstream{mux: mux, Server: srv}
}

// Handle 注册一个处理器。
func (u *Upstream) Handle(pattern string, h http.HandlerFunc) *Upstream {
	u.mux.HandleFunc(pattern, h)
	return u
}

// JSON 注册一个固定 JSON 响应。
func (u *Upstream) JSON(pattern string, status int, body string) *Upstream {
	return u.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// Client 返回指向该上游的注入式客户端。
func (u *Upstream) Client(cfg skill.HTTPClientConfig) *skill.HTTPClient {
	cfg.BaseURL = u.Server.URL
	return skill.NewHTTPClient(cfg, nil)
}
