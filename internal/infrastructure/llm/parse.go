package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"jan-server/services/grant-scout/internal/domain/grant"
)

// text accepts any JSON scalar, or an array of scalars, as a string. Models
// regularly answer "amount": 5000 or "eligibility": ["a", "b"].
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(s))
	case '[':
		var items []text
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item != "" {
				parts = append(parts, string(item))
			}
		}
		*t = text(strings.Join(parts, "; "))
	case '{':
		*t = text(data)
	default:
		if f, err := strconv.ParseFloat(string(data), 64); err == nil {
			*t = text(strconv.FormatFloat(f, 'f', -1, 64))
			return nil
		}
		*t = text(data)
	}
	return nil
}

type grantPayload struct {
	Name               text `json:"name"`
	Organization       text `json:"organization"`
	Description        text `json:"description"`
	Eligibility        text `json:"eligibility"`
	Amount             text `json:"amount"`
	Deadline           text `json:"deadline"`
	ApplicationProcess text `json:"applicationProcess"`
	URL                text `json:"url"`
	Category           text `json:"category"`
	RequirementDetails text `json:"requirementDetails"`
	Exclusions         text `json:"exclusions"`
	ContactInfo        text `json:"contactInfo"`
}

func (p grantPayload) toGrant() grant.Grant {
	return grant.Grant{
		Fields: grant.Fields{
			Name:               string(p.Name),
			Organization:       string(p.Organization),
			Description:        string(p.Description),
			Eligibility:        string(p.Eligibility),
			Amount:             string(p.Amount),
			Deadline:           string(p.Deadline),
			ApplicationProcess: string(p.ApplicationProcess),
			URL:                string(p.URL),
			Category:           string(p.Category),
			RequirementDetails: optional(p.RequirementDetails),
			Exclusions:         optional(p.Exclusions),
			ContactInfo:        optional(p.ContactInfo),
		},
	}
}

func optional(t text) *string {
	if t == "" {
		return nil
	}
	s := string(t)
	return &s
}

// parseGrants decodes model output into records. It accepts {"grants": [...]},
// any other single-key object wrapping an array, or a bare array, optionally
// wrapped in a markdown code fence. Records without a name are dropped.
func parseGrants(content string) ([]grant.Grant, error) {
	body := strings.TrimSpace(stripCodeFence(content))
	if body == "" {
		return nil, errors.New("empty model output")
	}

	var payloads []grantPayload
	switch body[0] {
	case '[':
		if err := json.Unmarshal([]byte(body), &payloads); err != nil {
			return nil, fmt.Errorf("decode grant array: %w", err)
		}
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			return nil, fmt.Errorf("decode grant object: %w", err)
		}
		raw, ok := envelope["grants"]
		if !ok {
			for _, v := range envelope {
				if trimmed := bytes.TrimSpace(v); len(trimmed) > 0 && trimmed[0] == '[' {
					raw, ok = v, true
					break
				}
			}
		}
		if !ok {
			if _, named := envelope["name"]; named {
				raw, ok = json.RawMessage("["+body+"]"), true
			}
		}
		if !ok {
			return nil, errors.New("model output has no grant list")
		}
		if err := json.Unmarshal(raw, &payloads); err != nil {
			return nil, fmt.Errorf("decode grant list: %w", err)
		}
	default:
		return nil, errors.New("model output is not JSON")
	}

	grants := make([]grant.Grant, 0, len(payloads))
	for _, p := range payloads {
		if p.Name == "" {
			continue
		}
		grants = append(grants, p.toGrant())
	}
	return grants, nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	} else {
		trimmed = ""
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
