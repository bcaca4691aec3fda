package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	// Report fields by their wire names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// AssessmentRecord describes one testing product returned by the search endpoint.
// An empty assessment_length means unknown upstream; the lists must be present.
type AssessmentRecord struct {
	ID               string   `json:"id" validate:"notblank"`
	Name             string   `json:"name" validate:"notblank"`
	Description      string   `json:"description"`
	FullLink         string   `json:"full_link" validate:"required,http_url"`
	AssessmentLength string   `json:"assessment_length" validate:"omitempty,numeric"` // minutes
	RemoteTesting    string   `json:"remote_testing"`                                 // "Yes" or anything else
	AdaptiveIRT      string   `json:"adaptive_irt"`                                   // "Yes" or anything else
	JobLevels        []string `json:"job_levels" validate:"required"`
	TestType         []string `json:"test_type" validate:"required"`
	Languages        []string `json:"languages" validate:"required"`
}

// SearchMatch wraps a record the way the upstream returns it
type SearchMatch struct {
	Metadata *AssessmentRecord `json:"metadata" validate:"required"`
}

// SearchResponse is the upstream response body
type SearchResponse struct {
	Matches *[]SearchMatch `json:"matches" validate:"required,dive"`
}

// IsRemote reports whether remote testing is supported
func (a AssessmentRecord) IsRemote() bool {
	return a.RemoteTesting == "Yes"
}

// IsAdaptive reports whether the assessment is adaptive/IRT based
func (a AssessmentRecord) IsAdaptive() bool {
	return a.AdaptiveIRT == "Yes"
}

// Validate rejects records the page cannot render faithfully
func (a *AssessmentRecord) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("record %s: %w", a.ID, describe(err))
	}
	return nil
}

// Records validates the response and returns the records in server order
func (r *SearchResponse) Records() ([]AssessmentRecord, error) {
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("invalid search response: %w", describe(err))
	}

	records := make([]AssessmentRecord, 0, len(*r.Matches))
	for _, m := range *r.Matches {
		records = append(records, *m.Metadata)
	}

	return records, nil
}

// describe reduces validator output to its first failing field,
// e.g. "matches[1].metadata.full_link: failed http_url check"
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Errorf("%s is required", field)
	default:
		return fmt.Errorf("%s: %q failed %s check", field, fmt.Sprint(fe.Value()), fe.Tag())
	}
}
