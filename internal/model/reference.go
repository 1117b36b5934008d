// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// FileKind classifies what a reference points at.
type FileKind string

const (
	FileKindText        FileKind = "text"
	FileKindDocument    FileKind = "document"
	FileKindSpreadsheet FileKind = "spreadsheet"
	FileKindData        FileKind = "data"
	FileKindImage       FileKind = "image"
	FileKindLink        FileKind = "link"
	FileKindGeneric     FileKind = "generic"
)

// Label returns a short human-readable label for the kind.
func (k FileKind) Label() string {
	switch k {
	case FileKindText:
		return "Text"
	case FileKindDocument:
		return "Document"
	case FileKindSpreadsheet:
		return "Spreadsheet"
	case FileKindData:
		return "Data"
	case FileKindImage:
		return "Image"
	case FileKindLink:
		return "Link"
	default:
		return "File"
	}
}

// Reference is a deduplicated citation target within one assistant message.
type Reference struct {
	// Index is the 1-based footnote number shown in the text.
	Index       int      `json:"index"`
	Superscript string   `json:"superscript"`
	DisplayName string   `json:"name"`
	URL         string   `json:"url,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	Extension   string   `json:"extension,omitempty"`
	FileKind    FileKind `json:"file_type"`
	IsFileAsset bool     `json:"is_file"`
	// Numbers lists the raw citation numbers that merged into this entry.
	Numbers []int `json:"numbers,omitempty"`
}
