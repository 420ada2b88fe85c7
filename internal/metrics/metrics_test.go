package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名のメトリクスファミリーを返す。見つからない場合はテストを失敗させる。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labeledValue はラベル値に一致するカウンタ値を返す。
func labeledValue(mf *dto.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DuplicateRegistration_Panics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DuplicateRegistration_Panics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

// TestRecordUserCreated_CountsByRole はロール別にユーザー作成数が集計されることを検証する。
func TestRecordUserCreated_CountsByRole(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUserCreated("RIDER")
	c.RecordUserCreated("RIDER")
	c.RecordUserCreated("DRIVER")

	mf := findMetric(t, reg, "ridehub_users_created_total")
	if got := labeledValue(mf, "role", "RIDER"); got != 2 {
		t.Errorf("RIDER = %v, want 2", got)
	}
	if got := labeledValue(mf, "role", "DRIVER"); got != 1 {
		t.Errorf("DRIVER = %v, want 1", got)
	}
}

// TestRecordUpdateDenied_CountsByReason は拒否理由別に集計されることを検証する。
func TestRecordUpdateDenied_CountsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpdateDenied("FORBIDDEN_OTHER_USER")
	c.RecordUpdateDenied("FORBIDDEN")

	mf := findMetric(t, reg, "ridehub_user_update_denied_total")
	if got := labeledValue(mf, "reason", "FORBIDDEN_OTHER_USER"); got != 1 {
		t.Errorf("FORBIDDEN_OTHER_USER = %v, want 1", got)
	}
	if got := labeledValue(mf, "reason", "FORBIDDEN"); got != 1 {
		t.Errorf("FORBIDDEN = %v, want 1", got)
	}
}

// TestRecordLogin_CountsByOutcome はログイン結果別に集計されることを検証する。
func TestRecordLogin_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("success")
	c.RecordLogin("invalid_credentials")
	c.RecordLogin("success")

	mf := findMetric(t, reg, "ridehub_logins_total")
	if got := labeledValue(mf, "outcome", "success"); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
}

// TestRecordHTTPStatus_CountsByCode はステータスコード別に集計されることを検証する。
func TestRecordHTTPStatus_CountsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)
	c.RecordHTTPStatus(403)

	mf := findMetric(t, reg, "ridehub_http_status_total")
	if got := labeledValue(mf, "status_code", "403"); got != 2 {
		t.Errorf("403 = %v, want 2", got)
	}
}

// TestRecordRequestLatency_ObservesHistogram はヒストグラムに観測値が記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	mf := findMetric(t, reg, "ridehub_http_request_duration_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.149 || h.GetSampleSum() > 0.151 {
		t.Errorf("sample sum = %v, want ~0.15", h.GetSampleSum())
	}
}
