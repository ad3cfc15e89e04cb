package requests

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"jan-server/services/grant-scout/internal/domain/grant"
	"jan-server/services/grant-scout/internal/domain/search"
	"jan-server/services/grant-scout/internal/domain/summary"
	"jan-server/services/grant-scout/utils/platformerrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a request struct, returning a VALIDATION PlatformError that
// names every offending field.
func Validate(ctx context.Context, req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return platformerrors.NewValidationError(ctx, err.Error(), "c4f1a9e2-6b37-4d85-a0e3-52d8b1f7c96a")
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "url":
			messages = append(messages, fmt.Sprintf("%s must be a valid URL", fe.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return platformerrors.NewValidationError(ctx, strings.Join(messages, "; "), "e82b6d14-3f9a-4c07-b5d1-9a6e0c3f7b28")
}

// SearchItemsRequest is the search_items input.
type SearchItemsRequest struct {
	Query    string `json:"query" validate:"required,max=500" jsonschema:"what kind of funding to look for"`
	Category string `json:"category,omitempty" validate:"max=200" jsonschema:"only return records whose category contains this text"`
	UseWeb   *bool  `json:"useWeb,omitempty" jsonschema:"also search the web and configured sites (default true)"`
}

func (r *SearchItemsRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	r.Category = strings.TrimSpace(r.Category)
}

func (r *SearchItemsRequest) ToDomain() search.Request {
	return search.Request{Query: r.Query, Category: r.Category, UseWeb: r.UseWeb}
}

// SaveItemRequest is the save_item input: every record attribute the caller
// controls. Only the three detail fields may be omitted.
type SaveItemRequest struct {
	Name               string  `json:"name" validate:"required,max=500" jsonschema:"programme name"`
	Organization       string  `json:"organization" validate:"required,max=500" jsonschema:"funding body"`
	Description        string  `json:"description" validate:"required"`
	Eligibility        string  `json:"eligibility" validate:"required"`
	Amount             string  `json:"amount" validate:"required"`
	Deadline           string  `json:"deadline" validate:"required"`
	ApplicationProcess string  `json:"applicationProcess" validate:"required"`
	URL                string  `json:"url" validate:"required,url"`
	Category           string  `json:"category" validate:"required,max=200"`
	RequirementDetails *string `json:"requirementDetails,omitempty"`
	Exclusions         *string `json:"exclusions,omitempty"`
	ContactInfo        *string `json:"contactInfo,omitempty"`
}

func (r *SaveItemRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Organization = strings.TrimSpace(r.Organization)
	r.Description = strings.TrimSpace(r.Description)
	r.Eligibility = strings.TrimSpace(r.Eligibility)
	r.Amount = strings.TrimSpace(r.Amount)
	r.Deadline = strings.TrimSpace(r.Deadline)
	r.ApplicationProcess = strings.TrimSpace(r.ApplicationProcess)
	r.URL = strings.TrimSpace(r.URL)
	r.Category = strings.TrimSpace(r.Category)
}

func (r *SaveItemRequest) ToDomain() grant.Fields {
	return grant.Fields{
		Name:               r.Name,
		Organization:       r.Organization,
		Description:        r.Description,
		Eligibility:        r.Eligibility,
		Amount:             r.Amount,
		Deadline:           r.Deadline,
		ApplicationProcess: r.ApplicationProcess,
		URL:                r.URL,
		Category:           r.Category,
		RequirementDetails: r.RequirementDetails,
		Exclusions:         r.Exclusions,
		ContactInfo:        r.ContactInfo,
	}
}

// ItemsByCategoryRequest is the get_items_by_category input.
type ItemsByCategoryRequest struct {
	Category string `json:"category,omitempty" form:"category" validate:"max=200" jsonschema:"category filter, empty returns every record"`
}

func (r *ItemsByCategoryRequest) Normalize() {
	r.Category = strings.TrimSpace(r.Category)
}

// SummaryRequest is the generate_markdown_summary input.
type SummaryRequest struct {
	Title             string `json:"title" validate:"required,max=300" jsonschema:"report title"`
	Category          string `json:"category,omitempty" validate:"max=200" jsonschema:"only summarise records in this category"`
	IncludeIntro      *bool  `json:"includeIntro,omitempty" jsonschema:"start with an introduction (default true)"`
	IncludeConclusion *bool  `json:"includeConclusion,omitempty" jsonschema:"end with a conclusion (default true)"`
}

func (r *SummaryRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.TrimSpace(r.Category)
}

func (r *SummaryRequest) ToDomain() summary.Request {
	return summary.Request{
		Title:             r.Title,
		Category:          r.Category,
		IncludeIntro:      r.IncludeIntro,
		IncludeConclusion: r.IncludeConclusion,
	}
}
