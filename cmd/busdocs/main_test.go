package main

import (
	"context"
	"testing"
)

func TestAnalyzeFlagsValidate(t *testing.T) {
	cases := []struct {
		name  string
		flags analyzeFlags
		ok    bool
	}{
		{"none", analyzeFlags{}, false},
		{"ppu", analyzeFlags{ppu: "ABCD12"}, true},
		{"bus id", analyzeFlags{busID: "b1"}, true},
		{"all", analyzeFlags{all: true}, true},
		{"two", analyzeFlags{ppu: "ABCD12", all: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.flags.validate()
			if (err == nil) != tc.ok {
				t.Fatalf("validate() error = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand(&app{})
	for _, path := range [][]string{
		{"migrate"},
		{"analyze"},
		{"report", "completeness"},
		{"status", "show"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}

	analyze, _, _ := root.Find([]string{"analyze"})
	for _, name := range []string{"ppu", "bus-id", "all", "include-inactive", "dry-run", "json", "markdown", "workers"} {
		if analyze.Flags().Lookup(name) == nil {
			t.Fatalf("analyze is missing --%s", name)
		}
	}
	completeness, _, _ := root.Find([]string{"report", "completeness"})
	if completeness.Flags().Lookup("incomplete") == nil || completeness.Flags().Lookup("xlsx") == nil {
		t.Fatalf("completeness flags missing")
	}
}

func TestExecuteClosesHandleOnFailure(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	a := &app{}
	// analyze without a selector fails after the handle is created
	if err := execute(context.Background(), a, []string{"analyze"}); err == nil {
		t.Fatalf("expected analyze without a selector to fail")
	}
	if a.cfg == nil {
		t.Fatalf("expected the root pre-run to have loaded config")
	}
	if a.handle != nil {
		t.Fatalf("expected the database handle to be released")
	}
}
