package api

import "time"

// PublishRequest is the request body for publishing an update record.
type PublishRequest struct {
	Title         string `json:"title"`
	CreatedBy     string `json:"createdBy"`
	Date          string `json:"date,omitempty"`
	Priority      string `json:"priority,omitempty"`
	Type          string `json:"type,omitempty"`
	Scope         string `json:"scope,omitempty"`
	WhatToDo      string `json:"whatToDo"`
	FilesAffected string `json:"filesAffected"`
	Why           string `json:"why"`
	Verification  string `json:"verification"`
}

// PendingUpdate is one discovered record in a list response.
type PendingUpdate struct {
	ID            string `json:"id"`
	Origin        string `json:"origin"`
	Path          string `json:"path"`
	Title         string `json:"title"`
	CreatedBy     string `json:"createdBy"`
	Date          string `json:"date"`
	Priority      string `json:"priority"`
	Type          string `json:"type"`
	Scope         string `json:"scope"`
	ScopeInferred bool   `json:"scopeInferred"`
	Authorized    bool   `json:"authorized"`
}

// UpdateDetail is the full representation of one pending record.
type UpdateDetail struct {
	PendingUpdate
	Body     string            `json:"body"`
	Sections map[string]string `json:"sections"`
	Checksum string            `json:"checksum"`
}

// PendingListResponse wraps a discovery pass.
type PendingListResponse struct {
	Updates []PendingUpdate `json:"updates"`
	Total   int             `json:"total"`
}

// AppliedResponse is returned after a successful apply.
type AppliedResponse struct {
	ID         string    `json:"id"`
	AppliedAt  time.Time `json:"appliedAt"`
	AppliedBy  string    `json:"appliedBy"`
	UpdateType string    `json:"updateType"`
}

// LedgerResponse wraps the project's applied entries.
type LedgerResponse struct {
	SchemaVersion int               `json:"schemaVersion"`
	Applied       []AppliedResponse `json:"applied"`
}

// IndexedRecord is one raw index row, independent of ledger and
// affinity filtering.
type IndexedRecord struct {
	ID            string    `json:"id"`
	Origin        string    `json:"origin"`
	Path          string    `json:"path"`
	Title         string    `json:"title"`
	Priority      string    `json:"priority"`
	Scope         string    `json:"scope"`
	ScopeInferred bool      `json:"scopeInferred"`
	UpdateType    string    `json:"updateType"`
	Checksum      string    `json:"checksum"`
	IndexedAt     time.Time `json:"indexedAt"`
}

// RecordListResponse wraps an index listing.
type RecordListResponse struct {
	Records []IndexedRecord `json:"records"`
	Total   int             `json:"total"`
}

// SearchHit is a single search result.
type SearchHit struct {
	ID      string `json:"id"`
	Origin  string `json:"origin"`
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}
