package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/persist"
	"github.com/james-see/beatbox/pkg/playback"
	"github.com/james-see/beatbox/pkg/sequence"
)

// mockBackend accepts everything
type mockBackend struct {
	factor  float64
	loadErr error
}

func (m *mockBackend) Load(sequence.Timeline) error  { return m.loadErr }
func (m *mockBackend) SetLoop(bool)                  {}
func (m *mockBackend) SetTempoBPM(float64)           {}
func (m *mockBackend) SetTempoFactor(factor float64) { m.factor = factor }
func (m *mockBackend) TempoFactor() float64          { return m.factor }
func (m *mockBackend) Start() error                  { return nil }
func (m *mockBackend) Stop()                         {}
func (m *mockBackend) Close() error                  { return nil }

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRouter(t *testing.T, b playback.Backend) (*gin.Engine, *playback.Controller) {
	t.Helper()
	open := func() (playback.Backend, error) {
		if b == nil {
			return nil, errors.New("no outputs")
		}
		return b, nil
	}
	ctrl := playback.New(grid.New(), open, playback.WithLogger(quietLogger()))
	return NewRouter(ctrl), ctrl
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, &mockBackend{factor: 1})

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := doRequest(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "healthy") {
			t.Errorf("GET %s body = %s", path, w.Body.String())
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, &mockBackend{factor: 1})
	w := doRequest(r, http.MethodOptions, "/api/v1/grid", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestInstruments(t *testing.T) {
	r, _ := newTestRouter(t, &mockBackend{factor: 1})
	w := doRequest(r, http.MethodGet, "/api/v1/instruments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /instruments = %d", w.Code)
	}

	var body struct {
		Instruments []struct {
			Name    string `json:"name"`
			Trigger uint8  `json:"trigger"`
		} `json:"instruments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(body.Instruments) != 16 {
		t.Fatalf("got %d instruments, want 16", len(body.Instruments))
	}
	if body.Instruments[0].Name != "Bass Drum" || body.Instruments[0].Trigger != 35 {
		t.Errorf("first instrument = %+v", body.Instruments[0])
	}
}

func TestGridCells(t *testing.T) {
	r, ctrl := newTestRouter(t, &mockBackend{factor: 1})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"toggle", http.MethodPost, "/api/v1/grid/toggle", `{"instrument":3,"step":4}`, http.StatusOK},
		{"set", http.MethodPut, "/api/v1/grid/cell", `{"instrument":15,"step":15,"active":true}`, http.StatusOK},
		{"toggle out of range", http.MethodPost, "/api/v1/grid/toggle", `{"instrument":16,"step":0}`, http.StatusBadRequest},
		{"set without value", http.MethodPut, "/api/v1/grid/cell", `{"instrument":1,"step":1}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/v1/grid/toggle", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}

	m := ctrl.Grid()
	if !m[3][4] || !m[15][15] || m.ActiveCount() != 2 {
		t.Errorf("grid after requests:\n%s", m)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/grid", "")
	var resp GridResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Active != 2 || len(resp.Rows) != 16 {
		t.Errorf("GET /grid active = %d rows = %d", resp.Active, len(resp.Rows))
	}
	if !resp.Rows[3].Steps[4] {
		t.Error("row 3 step 4 not active in response")
	}

	w = doRequest(r, http.MethodPost, "/api/v1/grid/clear", "")
	if w.Code != http.StatusOK || ctrl.Grid().ActiveCount() != 0 {
		t.Errorf("POST /grid/clear = %d, active = %d", w.Code, ctrl.Grid().ActiveCount())
	}
}

func TestTransport(t *testing.T) {
	r, ctrl := newTestRouter(t, &mockBackend{factor: 1})

	w := doRequest(r, http.MethodPost, "/api/v1/transport/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("POST /transport/start = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"state":"playing"`) {
		t.Errorf("start body = %s", w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/api/v1/tempo/up", "")
	if w.Code != http.StatusOK || ctrl.TempoFactor() != 1.03 {
		t.Errorf("POST /tempo/up = %d, factor = %v", w.Code, ctrl.TempoFactor())
	}
	w = doRequest(r, http.MethodPost, "/api/v1/tempo/reset", "")
	if w.Code != http.StatusOK || ctrl.TempoFactor() != 1.0 {
		t.Errorf("POST /tempo/reset = %d, factor = %v", w.Code, ctrl.TempoFactor())
	}
	w = doRequest(r, http.MethodPost, "/api/v1/tempo/down", "")
	if w.Code != http.StatusOK || ctrl.TempoFactor() != 0.97 {
		t.Errorf("POST /tempo/down = %d, factor = %v", w.Code, ctrl.TempoFactor())
	}

	w = doRequest(r, http.MethodPost, "/api/v1/transport/stop", "")
	if w.Code != http.StatusOK || ctrl.State() != playback.Stopped {
		t.Errorf("POST /transport/stop = %d, state = %v", w.Code, ctrl.State())
	}

	w = doRequest(r, http.MethodGet, "/api/v1/transport", "")
	var status playback.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if status.State != playback.Stopped || status.TempoFactor != 0.97 || !status.Backend {
		t.Errorf("GET /transport = %+v", status)
	}
}

func TestTransportErrors(t *testing.T) {
	t.Run("no backend", func(t *testing.T) {
		r, _ := newTestRouter(t, nil)
		for _, path := range []string{"/api/v1/transport/start", "/api/v1/tempo/up", "/api/v1/tempo/down", "/api/v1/tempo/reset"} {
			if w := doRequest(r, http.MethodPost, path, ""); w.Code != http.StatusServiceUnavailable {
				t.Errorf("POST %s = %d, want 503", path, w.Code)
			}
		}
		if w := doRequest(r, http.MethodPost, "/api/v1/transport/stop", ""); w.Code != http.StatusOK {
			t.Errorf("POST /transport/stop = %d, want 200", w.Code)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		r, _ := newTestRouter(t, &mockBackend{factor: 1, loadErr: errors.New("busy")})
		if w := doRequest(r, http.MethodPost, "/api/v1/transport/start", ""); w.Code != http.StatusConflict {
			t.Errorf("POST /transport/start = %d, want 409", w.Code)
		}
	})
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pattern", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPatternDownloadUpload(t *testing.T) {
	var want grid.Matrix
	want[0][0], want[3][4], want[15][12] = true, true, true

	for _, format := range []string{"ser", "yml", "mid"} {
		t.Run(format, func(t *testing.T) {
			r, ctrl := newTestRouter(t, &mockBackend{factor: 1})
			ctrl.LoadMatrix(want)

			w := doRequest(r, http.MethodGet, "/api/v1/pattern?format="+format, "")
			if w.Code != http.StatusOK {
				t.Fatalf("GET /pattern = %d: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Header().Get("Content-Disposition"), "pattern.") {
				t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
			}
			data := w.Body.Bytes()

			ctrl.Clear()
			w = httptest.NewRecorder()
			r.ServeHTTP(w, uploadRequest(t, "upload."+format, data))
			if w.Code != http.StatusOK {
				t.Fatalf("POST /pattern = %d: %s", w.Code, w.Body.String())
			}
			if got := ctrl.Grid(); got != want {
				t.Errorf("grid after upload:\n%s", got)
			}
		})
	}
}

func TestPatternErrors(t *testing.T) {
	r, ctrl := newTestRouter(t, &mockBackend{factor: 1})
	if err := ctrl.SetCell(2, 2, true); err != nil {
		t.Fatal(err)
	}

	if w := doRequest(r, http.MethodGet, "/api/v1/pattern?format=wav", ""); w.Code != http.StatusBadRequest {
		t.Errorf("GET /pattern?format=wav = %d, want 400", w.Code)
	}

	saved, err := persist.Encode(ctrl.Grid())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"truncated stream", "pattern.ser", saved[:50]},
		{"sniffed truncated stream", "pattern.bin", saved[:50]},
		{"bad yaml", "pattern.yml", []byte("instruments: 7")},
		{"not midi", "pattern.mid", []byte("MThd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, uploadRequest(t, tt.filename, tt.data))
			if w.Code != http.StatusBadRequest {
				t.Errorf("POST /pattern = %d, want 400: %s", w.Code, w.Body.String())
			}
			if !ctrl.Grid()[2][2] {
				t.Error("grid changed after a failed upload")
			}
		})
	}

	w := doRequest(r, http.MethodPost, "/api/v1/pattern", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("POST /pattern without a file = %d, want 400", w.Code)
	}
}
