package registry

import (
	"testing"

	"github.com/pkg/errors"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[int]("numbers")
	if err := r.Register("one", 1, WithProvider("unit-test")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	v, err := r.Get("one")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 1 {
		t.Fatalf("Get = %d, want 1", v)
	}
	if p := r.Provider("one"); p != "unit-test" {
		t.Fatalf("Provider = %q, want unit-test", p)
	}
}

func TestDuplicateKeyRejectedWithoutOverride(t *testing.T) {
	r := New[string]("decoders")
	if err := r.Register("stub", "a"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("stub", "b"); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := r.Register("stub", "b", WithOverride()); err != nil {
		t.Fatalf("Register with override: %v", err)
	}
	v, _ := r.Get("stub")
	if v != "b" {
		t.Fatalf("override did not replace entry, got %q", v)
	}
}

func TestUnknownKey(t *testing.T) {
	r := New[int]("backbones")
	r.MustRegister("mlp", 1)
	_, err := r.Get("resnet")
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("Get unknown = %v, want ErrUnknownKey", err)
	}
}

func TestNamesSorted(t *testing.T) {
	r := New[int]("x")
	r.MustRegister("b", 2)
	r.MustRegister("a", 1)
	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("Names = %v, want [a b]", names)
	}
}
