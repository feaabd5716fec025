package domain

import (
	"fmt"
	"strings"
)

// MergePolicy selects how a remote collection is reconciled with the local one.
type MergePolicy string

const (
	// MergeAdditive appends remote quotes that are not already present.
	// Local quotes are never removed or overwritten.
	MergeAdditive MergePolicy = "additive"

	// MergeAuthoritative discards the local collection and adopts the remote one.
	MergeAuthoritative MergePolicy = "authoritative"
)

// ParseMergePolicy converts a configuration value into a MergePolicy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case MergeAdditive, "":
		return MergeAdditive, nil
	case MergeAuthoritative:
		return MergeAuthoritative, nil
	default:
		return "", NewValidationErrorWithValue("policy",
			fmt.Sprintf("must be %q or %q", MergeAdditive, MergeAuthoritative), s)
	}
}

// MergeReport describes the outcome of a merge.
type MergeReport struct {
	// Policy is the policy that was applied.
	Policy MergePolicy

	// Received is the number of remote quotes offered to the merge.
	Received int

	// Added is the number of remote quotes appended (additive policy).
	Added int

	// Replaced is the size of the collection that replaced the local one
	// (authoritative policy).
	Replaced int

	// Total is the collection size after the merge.
	Total int
}

// Count returns the figure the policy reports: quotes added or quotes replaced.
func (r MergeReport) Count() int {
	if r.Policy == MergeAuthoritative {
		return r.Replaced
	}

	return r.Added
}

// Merge reconciles local with remote under the given policy and returns the
// resulting collection. Neither input is modified.
//
// Under MergeAdditive the first occurrence of a quote wins, including
// duplicates inside the remote batch, so applying the same remote set again
// adds nothing.
func Merge(policy MergePolicy, local, remote QuoteCollection) (QuoteCollection, MergeReport) {
	report := MergeReport{Policy: policy, Received: len(remote)}

	if policy == MergeAuthoritative {
		merged := remote.Clone()
		report.Replaced = len(merged)
		report.Total = len(merged)

		return merged, report
	}

	report.Policy = MergeAdditive
	merged := local.Clone()

	seen := make(map[Quote]struct{}, len(local)+len(remote))
	for _, q := range local {
		seen[q] = struct{}{}
	}

	for _, q := range remote {
		if _, ok := seen[q]; ok {
			continue
		}

		seen[q] = struct{}{}
		merged = append(merged, q)
		report.Added++
	}

	report.Total = len(merged)

	return merged, report
}
