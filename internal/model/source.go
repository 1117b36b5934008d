// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// SourceDescriptor is citation seed data attached to an assistant message.
// The backend is loose about field names, so decoding accepts several
// aliases and also bare strings such as "Source 2: Q3 report (https://...)".
type SourceDescriptor struct {
	// Number is the citation number; zero when the backend omitted it.
	Number int    `json:"source_number,omitempty"`
	Name   string `json:"document_name,omitempty"`
	URL    string `json:"url,omitempty"`
	// Text holds the raw descriptor when it arrived as a plain string.
	Text string `json:"text,omitempty"`
}

type rawSourceDescriptor struct {
	SourceNumber json.RawMessage `json:"source_number"`
	Number       json.RawMessage `json:"number"`
	DocumentName string          `json:"document_name"`
	Name         string          `json:"name"`
	Label        string          `json:"label"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	Link         string          `json:"link"`
	Text         string          `json:"text"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SourceDescriptor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = SourceDescriptor{Text: text}
		return nil
	}

	var raw rawSourceDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SourceDescriptor{
		Number: firstNumber(raw.SourceNumber, raw.Number),
		Name:   firstNonEmpty(raw.DocumentName, raw.Name, raw.Label, raw.Title),
		URL:    firstNonEmpty(raw.URL, raw.Link),
		Text:   raw.Text,
	}
	return nil
}

// firstNumber decodes the first field holding an integer or a numeric string.
func firstNumber(fields ...json.RawMessage) int {
	for _, f := range fields {
		if len(f) == 0 || string(f) == "null" {
			continue
		}
		var n int
		if err := json.Unmarshal(f, &n); err == nil && n > 0 {
			return n
		}
		var s string
		if err := json.Unmarshal(f, &s); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
