package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	// Register custom validation tags
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	err := v.RegisterValidation("subject_type", validateSubjectType)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("platform_relation", validatePlatformRelation)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("access_policy", validateAccessPolicy)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("policy_engine", validatePolicyEngine)
	if err != nil {
		return nil
	}

	return &CustomValidator{validator: v}
}

// Custom validation functions
func validateSubjectType(fl playgroundvalidator.FieldLevel) bool {
	st := fl.Field().String()
	return st == "user" || st == "group" || st == "apikey"
}

func validatePlatformRelation(fl playgroundvalidator.FieldLevel) bool {
	relation := fl.Field().String()
	return relation == "owner" || relation == "admin" || relation == "use"
}

func validateAccessPolicy(fl playgroundvalidator.FieldLevel) bool {
	policy := fl.Field().String()
	return policy == "all_users" || policy == "restricted"
}

func validatePolicyEngine(fl playgroundvalidator.FieldLevel) bool {
	engine := fl.Field().String()
	return engine == "" || engine == "lua"
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}

// PlatformGrantRequest Request validation structs based on the core operations
type PlatformGrantRequest struct {
	ClientID    string `json:"clientId" validate:"required"`
	SubjectType string `json:"subjectType" validate:"required,subject_type"`
	SubjectID   string `json:"subjectId" validate:"required"`
	Relation    string `json:"relation" validate:"required,platform_relation"`
}

type PlatformRevokeRequest struct {
	ClientID    string `json:"clientId" validate:"required"`
	SubjectType string `json:"subjectType" validate:"required,subject_type"`
	SubjectID   string `json:"subjectId" validate:"required"`
	Relation    string `json:"relation" validate:"required,platform_relation"`
	Cascade     bool   `json:"cascade"`
}

type ScopedGrantRequest struct {
	ClientID       string `json:"clientId" validate:"required"`
	EntityTypeName string `json:"entityTypeName" validate:"required"`
	EntityID       string `json:"entityId" validate:"required"`
	Relation       string `json:"relation" validate:"required"`
	SubjectType    string `json:"subjectType" validate:"required,subject_type"`
	SubjectID      string `json:"subjectId" validate:"required"`
	Condition      string `json:"condition"`
}

type ModelUpdateRequest struct {
	ClientID       string          `json:"clientId" validate:"required"`
	EntityTypeName string          `json:"entityTypeName" validate:"required"`
	Definition     json.RawMessage `json:"definition" validate:"required"`
}

type ModelRenameRequest struct {
	ClientID string `json:"clientId" validate:"required"`
	OldName  string `json:"oldName" validate:"required"`
	NewName  string `json:"newName" validate:"required"`
}

type ConditionTestRequest struct {
	Script  string                 `json:"script" validate:"required"`
	Context map[string]interface{} `json:"context"`
}

type APIKeyCreateRequest struct {
	ClientID    string   `json:"clientId" validate:"required"`
	Name        string   `json:"name" validate:"required,min=2"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
	TTLHours    int      `json:"ttlHours" validate:"omitempty,min=1,max=8760"`
}
