package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/ridehub/internal/model"
)

type mockHTTPRecorder struct {
	mu        sync.Mutex
	statuses  []int
	latencies []time.Duration
}

func (m *mockHTTPRecorder) RecordUserCreated(string)  {}
func (m *mockHTTPRecorder) RecordUpdateDenied(string) {}
func (m *mockHTTPRecorder) RecordLogin(string)        {}
func (m *mockHTTPRecorder) RecordHTTPStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, code)
}
func (m *mockHTTPRecorder) RecordRequestLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, d)
}

// TestMiddlewareChain_LoggingSeesUserFromInnerAuth は
// 外側のロギングミドルウェアが内側の認証ミドルウェアで特定されたユーザーIDを出力することを検証する。
func TestMiddlewareChain_LoggingSeesUserFromInnerAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	verifier := newStaticVerifier(model.Claim{UserID: "user-chain-test", Role: model.RoleRider})

	handler := NewLoggingMiddleware(logger)(
		NewAuthMiddleware(verifier)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["user_id"] != "user-chain-test" {
		t.Errorf("user_id = %v, want %q", entry["user_id"], "user-chain-test")
	}
}

// TestMiddlewareChain_MetricsRecordsAuthFailure は
// 認証失敗時の401がメトリクスに記録されることを検証する。
func TestMiddlewareChain_MetricsRecordsAuthFailure(t *testing.T) {
	recorder := &mockHTTPRecorder{}

	handler := NewMetricsMiddleware(recorder)(
		NewAuthMiddleware(&mockTokenVerifier{})(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}),
		),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/me", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusUnauthorized {
		t.Errorf("statuses = %v, want [401]", recorder.statuses)
	}
	if len(recorder.latencies) != 1 || recorder.latencies[0] < 0 {
		t.Errorf("latencies = %v, want one non-negative value", recorder.latencies)
	}
}

// TestMiddlewareChain_MetricsDefaultsTo200 は
// WriteHeaderを呼ばないハンドラーが200として記録されることを検証する。
func TestMiddlewareChain_MetricsDefaultsTo200(t *testing.T) {
	recorder := &mockHTTPRecorder{}

	handler := NewMetricsMiddleware(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusOK {
		t.Errorf("statuses = %v, want [200]", recorder.statuses)
	}
}

// TestMiddlewareChain_RecoveryReturnsJSON500 はpanicが統一フォーマットの500になることを検証する。
func TestMiddlewareChain_RecoveryReturnsJSON500(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal || body.StatusCode != http.StatusInternalServerError {
		t.Errorf("body = %+v", body)
	}
}

// TestSecurityHeadersMiddleware_SetsHeaders はセキュリティヘッダーが付与されることを検証する。
func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}
