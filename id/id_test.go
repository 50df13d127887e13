package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/rewards/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"AccountID", id.NewAccountID, "acct_"},
		{"InvoiceID", id.NewInvoiceID, "inv_"},
		{"LinkID", id.NewLinkID, "lnk_"},
		{"EntryID", id.NewEntryID, "ent_"},
		{"IssuerID", id.NewIssuerID, "iss_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"AccountID", id.NewAccountID, id.ParseAccountID},
		{"InvoiceID", id.NewInvoiceID, id.ParseInvoiceID},
		{"LinkID", id.NewLinkID, id.ParseLinkID},
		{"EntryID", id.NewEntryID, id.ParseEntryID},
		{"IssuerID", id.NewIssuerID, id.ParseIssuerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseAccountID rejects inv_", id.NewInvoiceID().String(), id.ParseAccountID},
		{"ParseInvoiceID rejects lnk_", id.NewLinkID().String(), id.ParseInvoiceID},
		{"ParseLinkID rejects ent_", id.NewEntryID().String(), id.ParseLinkID},
		{"ParseEntryID rejects iss_", id.NewIssuerID().String(), id.ParseEntryID},
		{"ParseIssuerID rejects acct_", id.NewAccountID().String(), id.ParseIssuerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestParseOptional(t *testing.T) {
	got, err := id.ParseOptional("")
	if err != nil {
		t.Fatalf("ParseOptional(\"\") failed: %v", err)
	}
	if !got.IsNil() {
		t.Error("expected nil ID for empty input")
	}

	want := id.NewAccountID()
	got, err = id.ParseOptional(want.String())
	if err != nil {
		t.Fatalf("ParseOptional failed: %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("mismatch: %q != %q", got, want)
	}
}

func TestParseOptionalWithPrefix(t *testing.T) {
	got, err := id.ParseOptionalWithPrefix("", id.PrefixAccount)
	if err != nil || !got.IsNil() {
		t.Fatalf("expected nil ID for empty input, got %q, %v", got, err)
	}

	want := id.NewAccountID()
	got, err = id.ParseOptionalWithPrefix(want.String(), id.PrefixAccount)
	if err != nil {
		t.Fatalf("ParseOptionalWithPrefix failed: %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("mismatch: %q != %q", got, want)
	}

	if _, err := id.ParseOptionalWithPrefix(id.NewLinkID().String(), id.PrefixAccount); err == nil {
		t.Error("expected error for a link ID where an account ID belongs")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewLinkID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !empty.IsNil() {
		t.Error("expected nil after unmarshal of empty text")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewEntryID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	if err := scanned.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
