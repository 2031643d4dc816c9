package llm

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interviewer/internal/audio"
	"github.com/loqalabs/loqa-interviewer/internal/config"
)

func writeTestWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answer.wav")
	if err := os.WriteFile(path, audio.EncodePCM16(make([]int16, 1600), 16000), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewSTTClient_Validation(t *testing.T) {
	if _, err := NewSTTClient(config.STTConfig{Model: "whisper-1"}, ""); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewSTTClient(config.STTConfig{}, "sk-test"); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestSTTClient_Transcribe(t *testing.T) {
	var gotModel, gotLanguage string
	var gotFileSize int

	server := newFakeOpenAI(t, map[string]http.HandlerFunc{
		"/audio/transcriptions": func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm() error = %v", err)
			}
			gotModel = r.FormValue("model")
			gotLanguage = r.FormValue("language")

			file, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("FormFile() error = %v", err)
			} else {
				data, _ := io.ReadAll(file)
				gotFileSize = len(data)
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"text": "  I build voice assistants.  "}`))
		},
	})

	client, err := NewSTTClient(config.STTConfig{
		URL:      server.URL + "/v1/",
		Model:    "whisper-1",
		Language: "en",
		Timeout:  5 * time.Second,
	}, "sk-test", testOptions()...)
	if err != nil {
		t.Fatalf("NewSTTClient() error = %v", err)
	}
	defer func() { _ = client.Close() }()

	text, err := client.Transcribe(context.Background(), writeTestWAV(t))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if text != "I build voice assistants." {
		t.Errorf("Transcribe() = %q", text)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", gotModel)
	}
	if gotLanguage != "en" {
		t.Errorf("language = %q, want en", gotLanguage)
	}
	if gotFileSize != 44+3200 {
		t.Errorf("file size = %d, want %d", gotFileSize, 44+3200)
	}
}

func TestSTTClient_TranscribeErrors(t *testing.T) {
	server := newFakeOpenAI(t, map[string]http.HandlerFunc{
		"/audio/transcriptions": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"message": "model overloaded"}}`, http.StatusServiceUnavailable)
		},
	})

	client, err := NewSTTClient(config.STTConfig{URL: server.URL + "/v1/", Model: "whisper-1"}, "sk-test", testOptions()...)
	if err != nil {
		t.Fatalf("NewSTTClient() error = %v", err)
	}

	if _, err := client.Transcribe(context.Background(), writeTestWAV(t)); err == nil {
		t.Error("expected error for upstream failure")
	}

	if _, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}
