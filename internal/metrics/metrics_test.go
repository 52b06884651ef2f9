package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/gosh/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.SetJobsLive(3)
	metrics.IncJobLaunched()
	metrics.IncBuiltin("jobs")
	metrics.AddProcessReaped("exited")
	metrics.AddProcessReaped("exited")
	metrics.ObserveForegroundWait(25 * time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "gosh_jobs_live 3") {
		t.Fatalf("expected live-jobs gauge in body:\n%s", body)
	}
	if !strings.Contains(body, "gosh_builtin_calls_total{name=\"jobs\"} 1") {
		t.Fatalf("expected builtin counter line in body:\n%s", body)
	}
	if !strings.Contains(body, "gosh_processes_reaped_total{outcome=\"exited\"} 2") {
		t.Fatalf("expected reap counter line in body:\n%s", body)
	}
	if !strings.Contains(body, "gosh_foreground_wait_seconds_count 1") {
		t.Fatalf("expected foreground wait histogram in body:\n%s", body)
	}
	if !strings.Contains(body, "gosh_build_info{") {
		t.Fatalf("expected build info metric in body:\n%s", body)
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}

func TestHelpersIgnoreBadInput(t *testing.T) {
	metrics.SetJobsLive(-1)
	metrics.IncBuiltin("")
	metrics.ObserveForegroundWait(-time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "builtin_calls_total{name=\"\"}") {
		t.Fatalf("empty builtin name should not be recorded:\n%s", body)
	}
}
