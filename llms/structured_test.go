package llms

import "testing"

func TestValidateStructured_JSON(t *testing.T) {
	schema := Schema{Name: "test", Format: FormatJSON, Fields: []string{"action", "parameters"}}

	t.Run("valid", func(t *testing.T) {
		parsed, err := validateStructured(`{"action":"move","parameters":{}}`, schema)
		if err != nil {
			t.Fatalf("validateStructured: %v", err)
		}
		if parsed["action"] != "move" {
			t.Fatalf("action = %v, want move", parsed["action"])
		}
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := validateStructured(`{"action":"move"}`, schema)
		if err == nil {
			t.Fatal("want error for missing \"parameters\" field")
		}
	})

	t.Run("not json", func(t *testing.T) {
		_, err := validateStructured("not json at all", schema)
		if err == nil {
			t.Fatal("want error for invalid JSON")
		}
	})
}

func TestValidateStructured_Enum(t *testing.T) {
	schema := Schema{Name: "decision", Format: FormatEnum, Enum: []string{"approve", "reject"}}

	t.Run("valid quoted", func(t *testing.T) {
		parsed, err := validateStructured(`"approve"`, schema)
		if err != nil {
			t.Fatalf("validateStructured: %v", err)
		}
		if parsed["value"] != "approve" {
			t.Fatalf("value = %v, want approve", parsed["value"])
		}
	})

	t.Run("valid bare", func(t *testing.T) {
		parsed, err := validateStructured("reject", schema)
		if err != nil {
			t.Fatalf("validateStructured: %v", err)
		}
		if parsed["value"] != "reject" {
			t.Fatalf("value = %v, want reject", parsed["value"])
		}
	})

	t.Run("not in enum", func(t *testing.T) {
		_, err := validateStructured("maybe", schema)
		if err == nil {
			t.Fatal("want error for value outside enum")
		}
	})
}
