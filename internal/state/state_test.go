package state

import "testing"

func TestLastModule_RoundTrip(t *testing.T) {
	f, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// No state yet.
	got, err := f.LastModule()
	if err != nil {
		t.Fatalf("LastModule() error = %v", err)
	}
	if got != "" {
		t.Errorf("LastModule() = %q, want empty", got)
	}

	if err := f.SaveLastModule("module-42"); err != nil {
		t.Fatalf("SaveLastModule() error = %v", err)
	}
	got, err = f.LastModule()
	if err != nil {
		t.Fatalf("LastModule() error = %v", err)
	}
	if got != "module-42" {
		t.Errorf("LastModule() = %q, want module-42", got)
	}
}

func TestClear_Idempotent(t *testing.T) {
	f, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := f.SaveLastModule("module-42"); err != nil {
		t.Fatalf("SaveLastModule() error = %v", err)
	}
	if err := f.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := f.Clear(); err != nil {
		t.Errorf("second Clear() error = %v, want no-op", err)
	}

	got, err := f.LastModule()
	if err != nil {
		t.Fatalf("LastModule() error = %v", err)
	}
	if got != "" {
		t.Errorf("LastModule() = %q, want empty after Clear", got)
	}
}
