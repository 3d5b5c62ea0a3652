package validate_test

import (
	"testing"

	"github.com/carepath-academy/carepath/pkg/validate"
)

type registerInput struct {
	Name            string `json:"name"             validate:"required,min=2,max=100"`
	Email           string `json:"email"            validate:"required,email"`
	Password        string `json:"password"         validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"omitempty,eqfield=Password"`
	Role            string `json:"role"             validate:"omitempty,oneof=ADMIN USER"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(registerInput{
		Name:     "Dana Reyes",
		Email:    "dana@example.com",
		Password: "secret123",
		Role:     "USER",
	})
	if validate.HasErrors(errs) {
		t.Errorf("expected no errors, got: %v", errs)
	}
}

func TestRequiredUsesJSONNames(t *testing.T) {
	errs := validate.Struct(registerInput{})
	for _, field := range []string{"name", "email", "password"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected %s to be required, got %v", field, errs)
		}
	}
	if got := errs["email"]; got != "The email field is required." {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestOneOfAndConfirmation(t *testing.T) {
	errs := validate.Struct(registerInput{
		Name:            "Dana",
		Email:           "dana@example.com",
		Password:        "secret123",
		PasswordConfirm: "secret124",
		Role:            "ROOT",
	})
	if _, ok := errs["role"]; !ok {
		t.Error("expected role to fail oneof")
	}
	if _, ok := errs["password_confirm"]; !ok {
		t.Error("expected confirmation mismatch")
	}
}

func TestNumericBounds(t *testing.T) {
	type in struct {
		Quantity int `json:"quantity" validate:"gte=0,lte=99"`
	}
	if errs := validate.Struct(in{Quantity: -1}); errs["quantity"] != "The quantity must be greater than or equal to 0." {
		t.Errorf("unexpected errors: %v", errs)
	}
	if errs := validate.Struct(in{Quantity: 0}); validate.HasErrors(errs) {
		t.Errorf("expected 0 to pass, got: %v", errs)
	}
}

func TestOTPRule(t *testing.T) {
	type in struct {
		OTP string `json:"otp" validate:"required,otp"`
	}
	for code, ok := range map[string]bool{"123456": true, "12345": false, "12a456": false, "1234567": false} {
		errs := validate.Struct(in{OTP: code})
		if validate.HasErrors(errs) == ok {
			t.Errorf("otp %q: expected valid=%v, got %v", code, ok, errs)
		}
	}
}

func TestNestedPath(t *testing.T) {
	type item struct {
		CourseID uint `json:"courseId" validate:"required"`
	}
	type in struct {
		Items []item `json:"items" validate:"required,dive"`
	}
	errs := validate.Struct(in{Items: []item{{CourseID: 1}, {}}})
	if _, ok := errs["items[1].courseId"]; !ok {
		t.Errorf("expected nested error key, got %v", errs)
	}
}

func TestNonStructIsIgnored(t *testing.T) {
	if errs := validate.Struct(42); validate.HasErrors(errs) {
		t.Errorf("expected no errors, got %v", errs)
	}
}
