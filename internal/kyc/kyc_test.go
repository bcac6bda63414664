package kyc

import (
	"context"
	"errors"
	"testing"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/store"
)

func TestValidateAadhaar(t *testing.T) {
	cases := []struct {
		number string
		want   bool
	}{
		{"123456789012", true},
		{"12345678901", false},
		{"1234567890123", false},
		{"12345678901a", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidateAadhaar(c.number); got != c.want {
			t.Errorf("ValidateAadhaar(%q) = %v, want %v", c.number, got, c.want)
		}
	}
}

func TestValidatePAN(t *testing.T) {
	cases := []struct {
		number string
		want   bool
	}{
		{"ABCDE1234F", true},
		{"abcde1234f", true}, // case-insensitive
		{"ABCD1234FG", false},
		{"ABCDE12345", false},
		{"ABCDE1234", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidatePAN(c.number); got != c.want {
			t.Errorf("ValidatePAN(%q) = %v, want %v", c.number, got, c.want)
		}
	}
}

func TestVerifyAndGet(t *testing.T) {
	r := NewRegistry(store.NewMemoryStore())
	ctx := context.Background()

	v, err := r.Verify(ctx, "C1", DocAadhaar, "123456789012")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Type != DocAadhaar || v.VerifiedAt == "" {
		t.Errorf("verification = %+v", v)
	}

	got, ok := r.Get("C1")
	if !ok || got.Number != "123456789012" {
		t.Errorf("Get = %+v ok=%v", got, ok)
	}
	if !r.IsVerified("C1") {
		t.Error("C1 must be verified")
	}
	if r.IsVerified("C2") {
		t.Error("C2 must not be verified")
	}
}

func TestVerifyUppercasesPAN(t *testing.T) {
	r := NewRegistry(store.NewMemoryStore())

	v, err := r.Verify(context.Background(), "C1", DocPAN, "abcde1234f")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Number != "ABCDE1234F" {
		t.Errorf("stored number = %q, want uppercased", v.Number)
	}
}

func TestVerifyRejections(t *testing.T) {
	r := NewRegistry(store.NewMemoryStore())
	ctx := context.Background()

	if _, err := r.Verify(ctx, "", DocAadhaar, "123456789012"); !errors.Is(err, ErrCustomerRequired) {
		t.Errorf("err = %v, want ErrCustomerRequired", err)
	}
	if _, err := r.Verify(ctx, "C1", DocAadhaar, "123"); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("err = %v, want ErrInvalidDocument", err)
	}
	if _, err := r.Verify(ctx, "C1", "Passport", "X1234567"); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("err = %v, want ErrInvalidDocument for unknown type", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	kv := store.NewMemoryStore()
	ctx := context.Background()

	r := NewRegistry(kv)
	if _, err := r.Verify(ctx, "C1", DocPAN, "ABCDE1234F"); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	reloaded := NewRegistry(kv)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.IsVerified("C1") {
		t.Error("verification lost across reload")
	}
}

func TestLoadToleratesMalformedData(t *testing.T) {
	kv := store.NewMemoryStore()
	ctx := context.Background()
	_ = kv.Set(ctx, domain.KeyKYC, []byte("{oops"))

	r := NewRegistry(kv)
	if err := r.Load(ctx); err != nil {
		t.Fatalf("Load must not fail on malformed data: %v", err)
	}
	if r.IsVerified("C1") {
		t.Error("malformed data must degrade to empty registry")
	}
}
