package controller

import (
	"log/slog"
	"slices"
	"testing"
)

// mockNewController is a constructor that creates an empty controller.
func mockNewController(conf map[string]any, log *slog.Logger) (Controller, error) {
	return Func("mock", "index", nil), nil
}

func TestRegister(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	if err := Register("test-controller", mockNewController); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if Get("test-controller") == nil {
		t.Fatal("Get returned nil for registered controller")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	if err := Register("dup", mockNewController); err != nil {
		t.Fatalf("First Register failed: %v", err)
	}
	if err := Register("dup", mockNewController); err == nil {
		t.Fatal("Expected error on duplicate registration, got nil")
	}
}

func TestMustRegister_Panics(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	MustRegister("panic-test", mockNewController)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected panic on duplicate MustRegister, got none")
		}
	}()
	MustRegister("panic-test", mockNewController)
}

func TestGet_NotRegistered(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	if Get("nonexistent") != nil {
		t.Fatal("Expected nil for unregistered controller")
	}
}

func TestRegistered_Sorted(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register("c", mockNewController)
	Register("a", mockNewController)
	Register("b", mockNewController)

	names := Registered()
	if !slices.Equal(names, []string{"a", "b", "c"}) {
		t.Errorf("Registered() = %v, want [a b c]", names)
	}
}
