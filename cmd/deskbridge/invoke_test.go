package main

import (
	"testing"
)

func TestBuildArgs_MergesJSONAndPairs(t *testing.T) {
	raw, err := buildArgs(`{"db":"sqlite:app.db","values":[1]}`, []string{"query=SELECT 1", "limit=10", "flag=true", "path=/tmp/a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"db":"sqlite:app.db","flag":true,"limit":10,"path":"/tmp/a=b","query":"SELECT 1","values":[1]}`
	if string(raw) != want {
		t.Errorf("expected %s, got %s", want, raw)
	}
}

func TestBuildArgs_EmptyIsNil(t *testing.T) {
	raw, err := buildArgs("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil args, got %s", raw)
	}
}

func TestBuildArgs_Rejects(t *testing.T) {
	if _, err := buildArgs(`[1,2]`, nil); err == nil {
		t.Error("expected error for non-object --json")
	}
	if _, err := buildArgs("", []string{"novalue"}); err == nil {
		t.Error("expected error for --arg without '='")
	}
	if _, err := buildArgs("", []string{"=x"}); err == nil {
		t.Error("expected error for --arg without key")
	}
}
