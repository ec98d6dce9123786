package validator

import "testing"

type resolveInput struct {
	EscrowID string `json:"escrow_id" validate:"required,uuid"`
	Action   string `json:"action" validate:"required,escrow_action"`
	Notes    string `json:"resolution_notes" validate:"required"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	errs := Validate(&resolveInput{EscrowID: "not-a-uuid", Action: "burn_it"})
	if errs == nil {
		t.Fatalf("expected errors")
	}
	if errs["escrow_id"] != "Invalid UUID" {
		t.Fatalf("unexpected escrow_id error: %q", errs["escrow_id"])
	}
	if errs["action"] == "" {
		t.Fatalf("expected action enum error")
	}
	if errs["resolution_notes"] != "This field is required" {
		t.Fatalf("unexpected notes error: %q", errs["resolution_notes"])
	}
}

func TestValidateAcceptsKnownEnumValues(t *testing.T) {
	in := &resolveInput{
		EscrowID: "2b0b6a52-9a4f-4d43-8d0e-5b7f9c1c1d11",
		Action:   "partial_refund",
		Notes:    "split after review",
	}
	if errs := Validate(in); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}
