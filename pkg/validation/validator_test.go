package validation

import (
	"strings"
	"testing"
)

// TestValidateTraceRequest tests trace request validation
func TestValidateTraceRequest(t *testing.T) {
	tests := []struct {
		name        string
		req         TraceRequest
		expectError bool
		errorField  string
	}{
		{
			name:        "Valid upstream request",
			req:         TraceRequest{Start: "R12", Direction: "upstream"},
			expectError: false,
		},
		{
			name:        "Direction is normalised",
			req:         TraceRequest{Start: "R12", Direction: " Aval "},
			expectError: false,
		},
		{
			name:        "Valid filters",
			req:         TraceRequest{Start: "R12", Direction: "down", Category: "01", Function: "COL"},
			expectError: false,
		},
		{
			name:        "Missing start",
			req:         TraceRequest{Direction: "upstream"},
			expectError: true,
			errorField:  "Start",
		},
		{
			name:        "Unknown direction",
			req:         TraceRequest{Start: "R12", Direction: "sideways"},
			expectError: true,
			errorField:  "Direction",
		},
		{
			name:        "Filter with punctuation",
			req:         TraceRequest{Start: "R12", Direction: "up", Category: "0;1"},
			expectError: true,
			errorField:  "Category",
		},
		{
			name:        "Filter too long",
			req:         TraceRequest{Start: "R12", Direction: "up", Function: "ABCDEFGHIJ"},
			expectError: true,
			errorField:  "Function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := ValidateTraceRequest(&req)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !strings.HasPrefix(err.Error(), tt.errorField) {
					t.Errorf("Expected error on %s, got %v", tt.errorField, err)
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}

	if err := ValidateTraceRequest(nil); err == nil {
		t.Error("Expected error for nil request")
	}
}

// TestValidateVisitRequest tests visit request validation
func TestValidateVisitRequest(t *testing.T) {
	tests := []struct {
		name        string
		req         VisitRequest
		expectError bool
	}{
		{"Pollution with keep", VisitRequest{Node: "N", Pollution: true, Keep: []string{"conduit:3"}}, false},
		{"No pollution", VisitRequest{Node: "N"}, false},
		{"Missing node", VisitRequest{Pollution: true}, true},
		{"Empty keep entry", VisitRequest{Node: "N", Pollution: true, Keep: []string{""}}, true},
		{"Keep without pollution", VisitRequest{Node: "N", Keep: []string{"conduit:3"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := ValidateVisitRequest(&req)
			if (err != nil) != tt.expectError {
				t.Errorf("ValidateVisitRequest() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

// TestValidateDesignateRequest tests designate request validation
func TestValidateDesignateRequest(t *testing.T) {
	if err := ValidateDesignateRequest(&DesignateRequest{Entity: "IND1", Network: "02"}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := ValidateDesignateRequest(&DesignateRequest{Entity: "IND1"}); err != nil {
		t.Errorf("Unexpected error without network: %v", err)
	}
	if err := ValidateDesignateRequest(&DesignateRequest{Entity: "IND1", Network: "07"}); err == nil {
		t.Error("Expected error for unknown network type")
	}
	if err := ValidateDesignateRequest(&DesignateRequest{}); err == nil {
		t.Error("Expected error for missing entity")
	}
}

// TestValidateCode tests single code validation
func TestValidateCode(t *testing.T) {
	for _, ok := range []string{"", "01", "COL", "a1B2"} {
		if err := ValidateCode("Category", ok); err != nil {
			t.Errorf("ValidateCode(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"0 1", "01-2", "123456789"} {
		if err := ValidateCode("Category", bad); err == nil {
			t.Errorf("ValidateCode(%q) expected error", bad)
		}
	}
}
