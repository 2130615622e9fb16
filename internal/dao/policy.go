package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Policy is the slice of a Sputnik DAO policy this service consumes: the
// proposal bond and the role/permission list. Fetched fresh per request,
// never cached.
type Policy struct {
	ProposalBond string `json:"proposal_bond"`
	Roles        []Role `json:"roles"`
}

type Role struct {
	Name        string   `json:"name"`
	Kind        RoleKind `json:"kind"`
	Permissions []string `json:"permissions"`
}

// RoleKind is either the string "Everyone" or an object naming a member
// group. Only the group form matters here.
type RoleKind struct {
	Group []string `json:"Group,omitempty"`
}

func (k *RoleKind) UnmarshalJSON(data []byte) error {
	// "Everyone" and {"Member": ...} kinds carry no group.
	if len(data) > 0 && data[0] == '"' {
		return nil
	}

	type alias RoleKind
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("dao: failed to parse role kind: %w", err)
	}
	*k = RoleKind(a)
	return nil
}

var votePermissions = []string{":VoteApprove", ":VoteReject", ":VoteRemove"}

// CanVote reports whether the account belongs to a group role that carries
// any voting permission.
func (p Policy) CanVote(accountID string) bool {
	for _, role := range p.Roles {
		if !role.hasVotePermission() {
			continue
		}
		for _, member := range role.Kind.Group {
			if member == accountID {
				return true
			}
		}
	}
	return false
}

func (r Role) hasVotePermission() bool {
	for _, perm := range r.Permissions {
		for _, vote := range votePermissions {
			if strings.Contains(perm, vote) {
				return true
			}
		}
	}
	return false
}

// Policy fetches and parses the DAO's policy.
func (b *Builder) Policy(ctx context.Context, daoID string) (Policy, error) {
	var policy Policy
	if err := b.rpc.ViewJSON(ctx, daoID, "get_policy", struct{}{}, &policy); err != nil {
		return Policy{}, fmt.Errorf("dao: failed to fetch policy of %s: %w", daoID, err)
	}
	return policy, nil
}

// RawPolicy fetches the DAO's policy without reshaping, for verbatim
// passthrough to API responses.
func (b *Builder) RawPolicy(ctx context.Context, daoID string) (json.RawMessage, error) {
	raw, err := b.rpc.View(ctx, daoID, "get_policy", emptyArgsBase64)
	if err != nil {
		return nil, fmt.Errorf("dao: failed to fetch policy of %s: %w", daoID, err)
	}
	return raw, nil
}
