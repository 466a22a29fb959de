package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	resp, err := http.Post(url, "application/json", reader)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestStartValidation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, payload := postJSON(t, srv.URL+"/api/start", map[string]string{"url": "  "})
	if resp.StatusCode != http.StatusBadRequest || payload["error"] != "Missing url" {
		t.Fatalf("expected missing url error, got %d %v", resp.StatusCode, payload)
	}

	resp, _ = postJSON(t, srv.URL+"/api/start", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.StatusCode)
	}

	resp, payload = postJSON(t, srv.URL+"/api/start", map[string]string{"url": "x", "task": "dub"})
	if resp.StatusCode != http.StatusBadRequest || payload["error"] == nil {
		t.Fatalf("expected bad task error, got %d %v", resp.StatusCode, payload)
	}

	var health healthResponse
	getJSON(t, srv.URL+"/health", &health)
	if health.Active {
		t.Fatal("slot must stay empty after rejected starts")
	}
}

func TestStartJoinConflictStop(t *testing.T) {
	t.Parallel()

	srv, container := newTestServer(t)
	stream := writePCM(t, 200)

	resp, payload := postJSON(t, srv.URL+"/api/start", map[string]string{"url": stream})
	if resp.StatusCode != http.StatusOK || payload["status"] != "starting" || payload["ok"] != true {
		t.Fatalf("unexpected start response: %d %v", resp.StatusCode, payload)
	}

	resp, payload = postJSON(t, srv.URL+"/api/start", map[string]string{"url": stream})
	if resp.StatusCode != http.StatusOK || payload["status"] != "already running" {
		t.Fatalf("unexpected join response: %d %v", resp.StatusCode, payload)
	}

	resp, payload = postJSON(t, srv.URL+"/api/start", map[string]string{"url": stream + ".other"})
	if resp.StatusCode != http.StatusConflict || payload["error"] != "Another stream is currently running. Try again later." {
		t.Fatalf("unexpected conflict response: %d %v", resp.StatusCode, payload)
	}

	var health healthResponse
	getJSON(t, srv.URL+"/healthz", &health)
	if !health.OK || !health.Active || health.URL != stream {
		t.Fatalf("unexpected health: %+v", health)
	}

	resp, payload = postJSON(t, srv.URL+"/api/stop", nil)
	if resp.StatusCode != http.StatusOK || payload["ok"] != true {
		t.Fatalf("unexpected stop response: %d %v", resp.StatusCode, payload)
	}
	waitFor(t, "slot release", func() bool {
		_, active := container.Controller.Active()
		return !active
	})

	resp, payload = postJSON(t, srv.URL+"/api/stop", nil)
	if resp.StatusCode != http.StatusBadRequest || payload["error"] != "No active stream" {
		t.Fatalf("expected no active stream, got %d %v", resp.StatusCode, payload)
	}
}

func TestRecentAfterCompletion(t *testing.T) {
	t.Parallel()

	srv, container := newTestServer(t)

	var before healthResponse
	getJSON(t, srv.URL+"/health", &before)
	if before.ModelLoaded {
		t.Fatal("engine must not load before the first window")
	}

	var empty recentResponse
	getJSON(t, srv.URL+"/api/recent", &empty)
	if empty.Active || empty.Recent == nil || len(empty.Recent) != 0 {
		t.Fatalf("unexpected empty recent: %+v", empty)
	}

	stream := writePCM(t, 3.5)
	if resp, payload := postJSON(t, srv.URL+"/api/start", map[string]string{"url": stream, "task": "transcribe"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("start failed: %d %v", resp.StatusCode, payload)
	}
	waitFor(t, "stream completion", func() bool {
		_, active := container.Controller.Active()
		return !active
	})

	var recent recentResponse
	getJSON(t, srv.URL+"/api/recent", &recent)
	if recent.Active || len(recent.Recent) != 3 {
		t.Fatalf("expected three cues from the ended stream, got %+v", recent)
	}
	if recent.LastText != "Chunk 2 transcribed." {
		t.Fatalf("unexpected last text: %q", recent.LastText)
	}
	if recent.Recent[1].Start != 1 || recent.Recent[1].End != 2 {
		t.Fatalf("unexpected cue timing: %+v", recent.Recent[1])
	}

	var after healthResponse
	getJSON(t, srv.URL+"/health", &after)
	if !after.ModelLoaded {
		t.Fatal("expected engine loaded after transcribing")
	}

	resp, err := http.Get(srv.URL + "/api/recent?format=srt")
	if err != nil {
		t.Fatalf("GET srt failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.HasPrefix(string(body), "1\n00:00:00,000 --> 00:00:01,000\nChunk 0 transcribed.\n") {
		t.Fatalf("unexpected srt body: %q", body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/x-subrip") {
		t.Fatalf("unexpected content type: %s", resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(srv.URL + "/api/recent?format=ass")
	if err != nil {
		t.Fatalf("GET ass failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/start")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
