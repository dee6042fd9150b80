package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentRequest is the body of POST /students/.
type CreateStudentRequest struct {
	Name       string `json:"name" validate:"required"`
	Department string `json:"department" validate:"required"`
}

// UpsertScoreRequest is the body of POST /students/{id}/scores/.
// Score is a pointer so that an absent value is told apart from 0.
type UpsertScoreRequest struct {
	Subject string   `json:"subject" validate:"required"`
	Score   *float64 `json:"score" validate:"required"`
}

// ListParams holds the pagination query of GET /students/.
type ListParams struct {
	Skip  int `json:"skip" validate:"gte=0"`
	Limit int `json:"limit" validate:"gte=1,lte=1000"`
}

const (
	defaultSkip  = 0
	defaultLimit = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// errBadRequest marks a body that could not be decoded at all.
var errBadRequest = errors.New("malformed request body")

// errBodyTooLarge marks a body cut short by the size limit.
var errBodyTooLarge = errors.New("request body too large")

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return validateStruct(dst)
}

// validateStruct converts validator failures into a domain validation error
// naming the first offending field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return shared.ValidationError("http", "Validate", "", shared.ErrValidation, err.Error())
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldMessage(fe))
	}

	return shared.ValidationError("http", "Validate", verrs[0].Field(), shared.ErrValidation,
		strings.Join(details, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PATH AND QUERY PARAMETERS
// ══════════════════════════════════════════════════════════════════════════════

// pathID parses the {id} segment as a positive student id.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ValidationError("http", "ParsePath", "student_id", shared.ErrValidation,
			"student id must be a positive integer")
	}
	return id, nil
}

// queryInt reads an integer query parameter, falling back to def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.ValidationError("http", "ParseQuery", key, shared.ErrValidation,
			key+" must be an integer")
	}
	return v, nil
}

// listParams reads and validates skip/limit.
func listParams(r *http.Request) (ListParams, error) {
	skip, err := queryInt(r, "skip", defaultSkip)
	if err != nil {
		return ListParams{}, err
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		return ListParams{}, err
	}

	p := ListParams{Skip: skip, Limit: limit}
	if err := validateStruct(p); err != nil {
		return ListParams{}, err
	}
	return p, nil
}
