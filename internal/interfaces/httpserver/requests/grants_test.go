package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/grant-scout/utils/platformerrors"
)

func validSave(edit func(r *SaveItemRequest)) *SaveItemRequest {
	req := &SaveItemRequest{
		Name:               "Fund",
		Organization:       "Org",
		Description:        "Supports small projects",
		Eligibility:        "SMEs",
		Amount:             "5000",
		Deadline:           "2026-12-31",
		ApplicationProcess: "Apply online",
		URL:                "https://example.org/fund",
		Category:           "tech",
	}
	if edit != nil {
		edit(req)
	}
	return req
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     any
		wantErr string
	}{
		{name: "search ok", req: &SearchItemsRequest{Query: "solar"}},
		{name: "search missing query", req: &SearchItemsRequest{}, wantErr: "query is required"},
		{name: "save ok", req: validSave(nil)},
		{name: "save missing name", req: validSave(func(r *SaveItemRequest) { r.Name = "" }), wantErr: "name is required"},
		{name: "save missing organization", req: validSave(func(r *SaveItemRequest) { r.Organization = "" }), wantErr: "organization is required"},
		{name: "save missing url", req: validSave(func(r *SaveItemRequest) { r.URL = "" }), wantErr: "url is required"},
		{name: "save missing category", req: validSave(func(r *SaveItemRequest) { r.Category = "" }), wantErr: "category is required"},
		{name: "save only name", req: &SaveItemRequest{Name: "Only a name"}, wantErr: "deadline is required"},
		{name: "save bad url", req: validSave(func(r *SaveItemRequest) { r.URL = "not a url" }), wantErr: "url must be a valid URL"},
		{name: "category empty ok", req: &ItemsByCategoryRequest{}},
		{name: "summary missing title", req: &SummaryRequest{Category: "x"}, wantErr: "title is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(context.Background(), tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeTrimsBeforeValidation(t *testing.T) {
	req := &SearchItemsRequest{Query: "   ", Category: " Energy "}
	req.Normalize()
	assert.Equal(t, "Energy", req.Category)
	assert.Error(t, Validate(context.Background(), req))
}

func TestSaveItemNormalizeBlanksFailRequired(t *testing.T) {
	req := validSave(func(r *SaveItemRequest) { r.Organization = "   " })
	req.Normalize()
	err := Validate(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "organization is required")
}
