// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type actionInput struct {
	Action string `validate:"required,action"`
	UserID int    `validate:"gt=0"`
	ItemID int    `validate:"gt=0"`
}

type limitInput struct {
	Limit int `validate:"min=1,max=100"`
}

func TestValidateStruct_Action(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     actionInput
		wantErr   bool
		wantField string
		wantTag   string
	}{
		{"seen", actionInput{"seen", 1, 1}, false, "", ""},
		{"liked", actionInput{"liked", 1, 2}, false, "", ""},
		{"favorited", actionInput{"favorited", 7, 9}, false, "", ""},
		{"unknown action", actionInput{"shared", 1, 1}, true, "Action", "action"},
		{"empty action", actionInput{"", 1, 1}, true, "Action", "required"},
		{"zero user", actionInput{"seen", 0, 1}, true, "UserID", "gt"},
		{"negative item", actionInput{"seen", 1, -3}, true, "ItemID", "gt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(&tt.input)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			first := err.First()
			if first.Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", first.Field(), tt.wantField)
			}
			if first.Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", first.Tag(), tt.wantTag)
			}
		})
	}
}

func TestTranslateError_Messages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"action", &actionInput{"shared", 1, 1}, "Action must be one of: seen, liked, favorited"},
		{"gt", &actionInput{"seen", 0, 1}, "UserID must be greater than 0"},
		{"min", &limitInput{Limit: 0}, "Limit must be at least 1"},
		{"max", &limitInput{Limit: 101}, "Limit must be at most 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if got := err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	t.Run("single error", func(t *testing.T) {
		t.Parallel()
		apiErr := ValidateStruct(&actionInput{"seen", 0, 1}).ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
		}
		if apiErr.Details["field"] != "UserID" {
			t.Errorf("Details[field] = %v, want UserID", apiErr.Details["field"])
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		t.Parallel()
		apiErr := ValidateStruct(&actionInput{"bogus", 0, 0}).ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok || len(fields) != 3 {
			t.Fatalf("Details[fields] = %v, want 3 entries", apiErr.Details["fields"])
		}
		if !strings.Contains(apiErr.Message, "ItemID:") {
			t.Errorf("Message = %q, want it to name ItemID", apiErr.Message)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		apiErr := (&RequestValidationError{}).ToAPIError()
		if apiErr.Message != "Validation failed" {
			t.Errorf("Message = %q, want Validation failed", apiErr.Message)
		}
	})
}
