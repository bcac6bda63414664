// Package kyc implements document verification for customers: Aadhaar and
// PAN format checks, with verifications persisted per customer through the
// key-value store port. This is a demo-grade check, not a call to a real
// KYC provider.
package kyc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Document types.
const (
	DocAadhaar = "Aadhaar"
	DocPAN     = "PAN"
)

var (
	// ErrCustomerRequired is returned when no customer ID is supplied.
	ErrCustomerRequired = errors.New("customer id is required")

	// ErrInvalidDocument is returned for unknown or malformed documents.
	ErrInvalidDocument = errors.New("invalid document")
)

var (
	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
)

// Verification is a persisted per-customer verification record.
type Verification struct {
	Type       string `json:"type"`
	Number     string `json:"number"`
	VerifiedAt string `json:"verifiedAt"`
}

// Registry holds the customer-to-verification mapping.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Verification
	kv   domain.Store

	// now is swappable for deterministic timestamps in tests.
	now func() time.Time
}

// NewRegistry creates a KYC registry backed by the persistence adapter.
func NewRegistry(kv domain.Store) *Registry {
	return &Registry{
		byID: make(map[string]Verification),
		kv:   kv,
		now:  time.Now,
	}
}

// Load reads persisted verifications. Missing keys and malformed JSON
// degrade to an empty registry.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.kv.Get(ctx, domain.KeyKYC)
	if err != nil {
		return fmt.Errorf("failed to load kyc verifications: %w", err)
	}
	if raw == nil {
		r.byID = make(map[string]Verification)
		return nil
	}

	var m map[string]Verification
	if err := json.Unmarshal(raw, &m); err != nil {
		slog.Warn("discarding malformed persisted kyc data", "error", err)
		r.byID = make(map[string]Verification)
		return nil
	}
	r.byID = m
	return nil
}

// ValidateAadhaar reports whether the number is a well-formed Aadhaar
// (exactly 12 digits).
func ValidateAadhaar(number string) bool {
	return aadhaarPattern.MatchString(number)
}

// ValidatePAN reports whether the number is a well-formed PAN
// (five letters, four digits, one letter; case-insensitive).
func ValidatePAN(number string) bool {
	return panPattern.MatchString(strings.ToUpper(number))
}

// Verify validates the document and records the verification for the
// customer. PAN numbers are stored uppercased.
func (r *Registry) Verify(ctx context.Context, customerID, docType, number string) (Verification, error) {
	if customerID == "" {
		return Verification{}, ErrCustomerRequired
	}

	switch docType {
	case DocAadhaar:
		if !ValidateAadhaar(number) {
			return Verification{}, fmt.Errorf("%w: aadhaar must be 12 digits", ErrInvalidDocument)
		}
	case DocPAN:
		if !ValidatePAN(number) {
			return Verification{}, fmt.Errorf("%w: pan looks invalid (example: ABCDE1234F)", ErrInvalidDocument)
		}
		number = strings.ToUpper(number)
	default:
		return Verification{}, fmt.Errorf("%w: unknown document type %q", ErrInvalidDocument, docType)
	}

	v := Verification{
		Type:       docType,
		Number:     number,
		VerifiedAt: r.now().UTC().Format(time.RFC3339),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[customerID] = v
	if err := r.persistLocked(ctx); err != nil {
		return Verification{}, err
	}
	return v, nil
}

// Get returns the verification for a customer, ok=false when none exists.
func (r *Registry) Get(customerID string) (Verification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.byID[customerID]
	return v, ok
}

// IsVerified reports whether the customer has a recorded verification.
func (r *Registry) IsVerified(customerID string) bool {
	_, ok := r.Get(customerID)
	return ok
}

func (r *Registry) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(r.byID)
	if err != nil {
		return fmt.Errorf("failed to marshal kyc verifications: %w", err)
	}
	if err := r.kv.Set(ctx, domain.KeyKYC, raw); err != nil {
		return fmt.Errorf("failed to persist kyc verifications: %w", err)
	}
	return nil
}
