package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectors(t *testing.T) {
	m := New()
	m.ObserveStage("ALIGNING", 2*time.Second)
	m.RunFinished("biomass_failure")
	m.RunFinished("biomass_failure")
	m.AddOrthologs("annotated", 12)
	m.AddOrthologs("unannotated", 1)
	m.SetGapfillThreshold(1e-7)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("biomass_failure")); got != 2 {
		t.Errorf("runs = %g", got)
	}
	if got := testutil.ToFloat64(m.orthologs.WithLabelValues("annotated")); got != 12 {
		t.Errorf("orthologs = %g", got)
	}
	if got := testutil.ToFloat64(m.gapfillThreshold); got != 1e-7 {
		t.Errorf("threshold = %g", got)
	}
	if n := testutil.CollectAndCount(m.stageDuration); n != 1 {
		t.Errorf("stage series = %d", n)
	}
}

func TestExport(t *testing.T) {
	m := New()
	m.RunFinished("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `strainmodel_runs_total{outcome="success"} 1`) {
		t.Errorf("handler output:\n%s", body)
	}

	path := filepath.Join(t.TempDir(), "strainmodel.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "strainmodel_runs_total") {
		t.Errorf("textfile:\n%s", data)
	}
}
