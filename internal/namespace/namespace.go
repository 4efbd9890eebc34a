// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package namespace aggregates per-namespace record counts and owner
breakdowns for the listNamespaces operation: total and deleted record
counts, the most recent updatedAt, and a descending list of owner counts
over live records only. Results are cached for 30 seconds, keyed by the
resolved (scope, prefix, limit, offset) tuple.
*/
package namespace

import "time"

// OwnerCount is one entry of a namespace's descending owner breakdown.
type OwnerCount struct {
	Owner string `json:"owner"`
	Count int    `json:"count"`
}

// Summary is one row of a listNamespaces result.
type Summary struct {
	Namespace        string       `json:"namespace"`
	Total            int          `json:"total"`
	Deleted          int          `json:"deleted"`
	MostRecentUpdate time.Time    `json:"mostRecentUpdatedAt"`
	OwnerCounts      []OwnerCount `json:"ownerCounts"`
}

// Scope resolves which namespaces a caller may list. A nil/empty
// Namespaces with Wildcard=false means "no namespaces" — the caller gets an
// empty page without a query ever running.
type Scope struct {
	Wildcard   bool
	Namespaces []string
}

// ListRequest is the resolved, validated parameters of a listNamespaces call.
type ListRequest struct {
	Scope  Scope
	Prefix string
	Limit  int
	Offset int
}

// ListResult is a page of namespace summaries plus the total namespace count.
type ListResult struct {
	Namespaces []Summary
	Total      int
}
