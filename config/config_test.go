package config

import (
	"bytes"
	"testing"
)

func TestParseOverridesOnlyGivenFields(t *testing.T) {
	args, err := Parse([]byte("arity: 4\ntopK: 5\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if args.Arity != 4 {
		t.Errorf("Arity = %d, want 4", args.Arity)
	}
	if args.TopK != 5 {
		t.Errorf("TopK = %d, want 5", args.TopK)
	}
	if args.Threads != Default().Threads {
		t.Errorf("Threads = %d, want default %d", args.Threads, Default().Threads)
	}
}

func TestValidateRejectsUnknownTreeType(t *testing.T) {
	args := Default()
	args.TreeType = "bogus"
	if err := args.Validate(); err == nil {
		t.Error("expected an error for an unknown treeType")
	}
}

func TestArgsBinRoundTrip(t *testing.T) {
	args := Default()
	args.Seed = 42
	var buf bytes.Buffer
	if err := args.SaveBin(&buf); err != nil {
		t.Fatalf("SaveBin: %v", err)
	}
	loaded, err := LoadBin(&buf)
	if err != nil {
		t.Fatalf("LoadBin: %v", err)
	}
	if loaded.Seed != 42 {
		t.Errorf("Seed = %d, want 42", loaded.Seed)
	}
}
