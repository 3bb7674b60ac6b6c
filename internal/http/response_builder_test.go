package http

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONResponse_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	err := NewJSONResponse(map[string]int{"rows": 3}).
		Status(http.StatusCreated).
		Header("X-Test", "yes").
		Write(w)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Test") != "yes" {
		t.Error("custom header not set")
	}
	if got := w.Body.String(); got != `{"rows":3}` {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()

	_ = JSONError(http.StatusNotFound, "unknown table x", "req_1").Write(w)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status code = %d, want 404", w.Code)
	}
	want := `{"error":"unknown table x","request_id":"req_1"}`
	if got := w.Body.String(); got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestHTMLError_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	HTMLError(w, http.StatusBadRequest, `<script>alert("x")</script>`)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("message not escaped: %q", body)
	}
	if !strings.Contains(body, `class="error"`) {
		t.Errorf("missing error wrapper: %q", body)
	}
}

func TestFormatters(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"count", formatCount(23906), "23,906"},
		{"money", formatMoney(671525465), "$671,525,465.00"},
		{"negative money", formatMoney(-1234.5), "-$1,234.50"},
		{"money NaN", formatMoney(math.NaN()), "-"},
		{"positive percent", formatPercent(12.5), "+12.50%"},
		{"negative percent", formatPercent(-50), "-50.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
