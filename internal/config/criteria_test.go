package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCriteriaFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "ok.yaml")
		os.WriteFile(path, []byte("criteria:\n  tone: warm\n  length: one sentence\nstop_markers:\n  - looks good\n"), 0o644)

		f, err := LoadCriteriaFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Criteria["tone"] != "warm" || len(f.Criteria) != 2 {
			t.Errorf("unexpected criteria %v", f.Criteria)
		}
		if len(f.StopMarkers) != 1 {
			t.Errorf("unexpected stop markers %v", f.StopMarkers)
		}
	})

	t.Run("empty description", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		os.WriteFile(path, []byte("criteria:\n  tone: \"\"\n"), 0o644)
		if _, err := LoadCriteriaFile(path); err == nil {
			t.Error("expected error for empty description")
		}
	})

	t.Run("not yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		os.WriteFile(path, []byte("criteria: [unclosed"), 0o644)
		if _, err := LoadCriteriaFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(dir, "out.yaml")
		in := &CriteriaFile{Criteria: map[string]string{"clarity": "plain words"}}
		if err := WriteCriteriaFile(path, in); err != nil {
			t.Fatalf("WriteCriteriaFile failed: %v", err)
		}
		out, err := LoadCriteriaFile(path)
		if err != nil || out.Criteria["clarity"] != "plain words" {
			t.Errorf("unexpected %v, %v", out, err)
		}
	})
}

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    int
		wantErr bool
	}{
		{"empty", nil, 0, false},
		{"two", []string{"tone=warm", "length = short, punchy"}, 2, false},
		{"description with equals", []string{"math=use a=b notation"}, 1, false},
		{"missing equals", []string{"tone"}, 0, true},
		{"empty name", []string{"=warm"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCriteria(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(c) != tt.want {
				t.Errorf("expected %d criteria, got %d", tt.want, len(c))
			}
		})
	}

	c, _ := ParseCriteria([]string{"math=use a=b notation"})
	if c["math"] != "use a=b notation" {
		t.Errorf("description truncated: %q", c["math"])
	}
}

func TestMerge(t *testing.T) {
	c := Merge(map[string]string{"tone": "calm", "length": "short"}, map[string]string{"tone": "warm"})
	if c["tone"] != "warm" || c["length"] != "short" {
		t.Errorf("unexpected merge %v", c)
	}
}
