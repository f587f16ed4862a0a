package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/valpere/redraft/internal/config"
	"github.com/valpere/redraft/internal/refiner"
	"github.com/valpere/redraft/internal/store"
)

func TestReadTask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.txt")
	if err := os.WriteFile(path, []byte("Write a haiku"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		input   string
		args    []string
		want    string
		wantErr bool
	}{
		{"args joined", "", []string{"Write", "a", "tagline"}, "Write a tagline", false},
		{"from file", path, nil, "Write a haiku", false},
		{"both", path, []string{"x"}, "", true},
		{"empty", "", []string{"  "}, "", true},
		{"missing file", filepath.Join(dir, "nope"), nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputFile = tt.input
			defer func() { inputFile = "" }()

			got, err := readTask(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readTask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readTask() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveLanguage_Explicit(t *testing.T) {
	for flag, want := range map[string]string{"": "", "none": "", "NONE": "", "DE": "de", "uk": "uk"} {
		if got := resolveLanguage(flag, "ignored", nil); got != want {
			t.Errorf("resolveLanguage(%q) = %q, want %q", flag, got, want)
		}
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("short\n text", 40); got != "short text" {
		t.Errorf("got %q", got)
	}
	long := "Привіт світ, це дуже довгий текст для перевірки обрізання"
	got := snippet(long, 20)
	if len([]rune(got)) != 20 {
		t.Errorf("expected 20 runes, got %d (%q)", len([]rune(got)), got)
	}
}

func TestWriteBatchCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	records := [][]string{
		{"id", "task"},
		{"1", "tagline for a bakery"},
		{"2", "tagline for a florist"},
	}
	done := map[int]store.BatchRow{
		1: {FinalText: "Fresh every morning", Reason: "stop_marker", Rounds: 1},
	}

	if err := writeBatchCSV(path, records, 1, done); err != nil {
		t.Fatalf("writeBatchCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"id", "task", "final", "reason", "rounds"},
		{"1", "tagline for a bakery", "Fresh every morning", "stop_marker", "1"},
		{"2", "tagline for a florist", "", "", ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

// newFakeOllama answers generate calls with a fixed draft, critique calls
// with "needs work" and judge calls with the given score.
func newFakeOllama(t *testing.T, score float64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			System string `json:"system"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		answer := "Fresh bread, baked daily."
		switch {
		case strings.Contains(req.System, "Grade the draft"):
			b, _ := json.Marshal(map[string]any{"score": score, "reasoning": "fits the task"})
			answer = string(b)
		case strings.Contains(req.System, "reviewer"):
			answer = "needs work"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": answer})
	}))
	t.Cleanup(server.Close)
	return server
}

// useSettings installs settings loaded from overrides for one test.
func useSettings(t *testing.T, overrides map[string]any) {
	t.Helper()
	vp := config.NewViper()
	vp.Set("db", "")
	vp.Set("max_attempts", 1)
	for k, val := range overrides {
		vp.Set(k, val)
	}
	s, err := config.Load(vp)
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}

	prevSettings, prevLogger := settings, logger
	settings, logger = s, slog.New(slog.DiscardHandler)
	t.Cleanup(func() { settings, logger = prevSettings, prevLogger })
}

func setBatchFlags(t *testing.T, in, out string) {
	t.Helper()
	batchInputFile, batchOutputFile, batchLang = in, out, "none"
	t.Cleanup(func() {
		batchInputFile, batchOutputFile, batchLang = "", "", "auto"
	})
}

func TestBatch_ScoreThresholdUsesJudge(t *testing.T) {
	server := newFakeOllama(t, 9)
	useSettings(t, map[string]any{
		"oracle.base_url": server.URL,
		"score_threshold": 8.0,
		"max_rounds":      3,
		"parallel":        1,
	})

	dir := t.TempDir()
	in := filepath.Join(dir, "tasks.csv")
	out := filepath.Join(dir, "drafts.csv")
	if err := os.WriteFile(in, []byte("Write a tagline for a bakery\n"), 0644); err != nil {
		t.Fatal(err)
	}
	setBatchFlags(t, in, out)

	if err := batchCmd.RunE(batchCmd, nil); err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{{"Write a tagline for a bakery", "Fresh bread, baked daily.", "score_threshold", "0"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("got %v, want %v", rows, want)
	}
}

func TestBatch_ConfigurationErrorIsReturned(t *testing.T) {
	server := newFakeOllama(t, 0)
	useSettings(t, map[string]any{
		"oracle.base_url": server.URL,
		"stop_markers":    []string{"  "},
		"parallel":        1,
	})

	dir := t.TempDir()
	in := filepath.Join(dir, "tasks.csv")
	if err := os.WriteFile(in, []byte("Write a tagline\n"), 0644); err != nil {
		t.Fatal(err)
	}
	setBatchFlags(t, in, filepath.Join(dir, "out.csv"))

	err := batchCmd.RunE(batchCmd, nil)
	var cfgErr *refiner.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "stop_markers" {
		t.Fatalf("expected stop_markers configuration error, got %v", err)
	}
}

func TestMemoryKey_IncludesStopMarkers(t *testing.T) {
	useSettings(t, nil)

	base := settings.LoopConfig()
	other := base
	other.StopMarkers = []string{"looks good"}
	reordered := base
	reordered.StopMarkers = []string{strings.ToUpper(base.StopMarkers[1]), base.StopMarkers[0]}

	if memoryKey(base, 1) == memoryKey(other, 1) {
		t.Error("different stop markers must give different memory keys")
	}
	if memoryKey(base, 1) != memoryKey(reordered, 1) {
		t.Error("order and case of stop markers must not change the memory key")
	}
	if memoryKey(base, 1) == memoryKey(base, 2) {
		t.Error("approach count must change the memory key")
	}
}

func TestCanReuseMemory(t *testing.T) {
	tests := []struct {
		name    string
		noCache bool
		report  string
		json    bool
		want    bool
	}{
		{"plain run", false, "", false, true},
		{"no cache", true, "", false, false},
		{"report needs trace", false, "out.html", false, false},
		{"json needs trace", false, "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noCache, reportFile, jsonOutput = tt.noCache, tt.report, tt.json
			defer func() { noCache, reportFile, jsonOutput = false, "", false }()

			if got := canReuseMemory(); got != tt.want {
				t.Errorf("canReuseMemory() = %v, want %v", got, tt.want)
			}
		})
	}
}
