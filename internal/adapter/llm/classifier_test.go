package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/resilient"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header: %q", r.Header.Get("Authorization"))
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if body["model"] != "test-model" {
			t.Errorf("Expected model test-model, got %v", body["model"])
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"boom"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func newTestClassifier(url string) *ChatClassifier {
	return NewChatClassifier(Options{
		Enabled: true,
		APIURL:  url,
		APIKey:  "test-key",
		Model:   "test-model",
	}, http.DefaultClient, zap.NewNop())
}

func TestNewChatClassifier_Enabled(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want bool
	}{
		{"fully configured", Options{Enabled: true, APIURL: "http://x", APIKey: "k", Model: "m"}, true},
		{"flag off", Options{Enabled: false, APIURL: "http://x", APIKey: "k"}, false},
		{"missing key", Options{Enabled: true, APIURL: "http://x"}, false},
		{"missing url", Options{Enabled: true, APIKey: "k"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChatClassifier(tt.opts, nil, zap.NewNop())
			if got := c.IsEnabled(); got != tt.want {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_Success(t *testing.T) {
	server := chatServer(t, http.StatusOK, "```json\n{\"label\": \"phishing\", \"probability\": 0.93}\n```")
	defer server.Close()

	c := newTestClassifier(server.URL)
	result, err := c.Classify(context.Background(), "Subject: verify your account")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Label != "PHISHING" {
		t.Errorf("Expected label PHISHING, got %s", result.Label)
	}
	if result.Probability != 0.93 {
		t.Errorf("Expected probability 0.93, got %v", result.Probability)
	}
	if c.Name() != "test-model" {
		t.Errorf("Expected name test-model, got %s", c.Name())
	}
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
	}{
		{"api error", http.StatusInternalServerError, ""},
		{"not json", http.StatusOK, "I think this is phishing"},
		{"missing probability", http.StatusOK, `{"label":"SAFE"}`},
		{"probability out of range", http.StatusOK, `{"label":"SAFE","probability":-3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.status, tt.content)
			defer server.Close()

			_, err := newTestClassifier(server.URL).Classify(context.Background(), "hello")
			if err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestClassify_Disabled(t *testing.T) {
	c := NewChatClassifier(Options{}, nil, zap.NewNop())
	if _, err := c.Classify(context.Background(), "hello"); err == nil {
		t.Error("Expected error for disabled classifier")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("Subject: Urgent\nBody: click here")

	if !strings.Contains(prompt, "click here") {
		t.Error("Prompt should contain the email text")
	}
	if !strings.Contains(prompt, "PHISHING|SAFE") {
		t.Error("Prompt should describe the answer format")
	}

	long := buildPrompt(strings.Repeat("é", maxPromptRunes+500))
	if strings.Count(long, "é") != maxPromptRunes {
		t.Errorf("Expected text to be truncated to %d runes", maxPromptRunes)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     ports.Classification
		wantErr  bool
	}{
		{"json in markdown", "```json\n{\"label\":\"SAFE\",\"probability\":0.8}\n```", ports.Classification{Label: "SAFE", Probability: 0.8}, false},
		{"plain json", `{"label":"LABEL_1","probability":0.7}`, ports.Classification{Label: "LABEL_1", Probability: 0.7}, false},
		{"bare fence", "```\n{\"label\":\"phishing\",\"probability\":1}\n```", ports.Classification{Label: "PHISHING", Probability: 1}, false},
		{"percent", `{"label":"SAFE","probability":85}`, ports.Classification{Label: "SAFE", Probability: 0.85}, false},
		{"text around", "Here you go:\n```json\n{\"label\":\"SAFE\",\"probability\":0.6}\n```\nDone", ports.Classification{Label: "SAFE", Probability: 0.6}, false},
		{"invalid", "nope", ports.Classification{}, true},
		{"missing label", `{"probability":0.5}`, ports.Classification{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseResponse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type fakeClassifier struct {
	enabled bool
	result  ports.Classification
	err     error
}

func (f fakeClassifier) Classify(ctx context.Context, text string) (ports.Classification, error) {
	return f.result, f.err
}
func (f fakeClassifier) Name() string    { return "fake" }
func (f fakeClassifier) IsEnabled() bool { return f.enabled }

func TestClassifyConfidence(t *testing.T) {
	tests := []struct {
		name        string
		classifier  ports.Classifier
		text        string
		wantPresent bool
		want        float64
	}{
		{"nil classifier", nil, "text", false, 0},
		{"disabled", fakeClassifier{enabled: false}, "text", false, 0},
		{"empty text", fakeClassifier{enabled: true}, "  ", false, 0},
		{"error degrades", fakeClassifier{enabled: true, err: errors.New("timeout")}, "text", false, 0},
		{"malicious label", fakeClassifier{enabled: true, result: ports.Classification{Label: "LABEL_1", Probability: 0.9}}, "text", true, 0.9},
		{"benign label inverted", fakeClassifier{enabled: true, result: ports.Classification{Label: "LABEL_0", Probability: 0.9}}, "text", true, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ClassifyConfidence(context.Background(), tt.classifier, tt.text, zap.NewNop())
			got, ok := res.Get()
			if ok != tt.wantPresent {
				t.Fatalf("present = %v, want %v (cause %q)", ok, tt.wantPresent, res.Cause())
			}
			if ok && (got-tt.want > 1e-9 || tt.want-got > 1e-9) {
				t.Errorf("confidence = %v, want %v", got, tt.want)
			}
			if !ok && res.Cause() == "" {
				t.Error("absent result should carry a cause")
			}
		})
	}
}

func TestChatClassifier_TimeoutCoversRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(50 * time.Millisecond):
			w.WriteHeader(http.StatusServiceUnavailable)
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := resilient.DefaultConfig()
	cfg.EnableCircuitBreaker = false
	c := NewChatClassifier(Options{
		Enabled: true,
		APIURL:  server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 300 * time.Millisecond,
	}, resilient.NewClient("classifier", 5*time.Second, cfg, zap.NewNop()), zap.NewNop())

	start := time.Now()
	_, err := c.Classify(context.Background(), "Verify your account now")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected an error from an unavailable classifier")
	}
	if elapsed > time.Second {
		t.Errorf("Classify took %v, retries must stay inside the timeout", elapsed)
	}
	if n := calls.Load(); n >= 4 {
		t.Errorf("Expected the deadline to stop retrying, got %d calls", n)
	}
}
