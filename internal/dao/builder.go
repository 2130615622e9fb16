package dao

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/jaswinder6991/dao-agent-next/internal/nearrpc"
	"github.com/jaswinder6991/dao-agent-next/internal/neartx"
	"github.com/jaswinder6991/dao-agent-next/internal/refswap"
	"github.com/jaswinder6991/dao-agent-next/internal/util"
)

// emptyArgsBase64 is base64("{}"), the empty view-call argument blob.
const emptyArgsBase64 = "e30="

type Config struct {
	ProposalGas uint64 `envconfig:"DAO_PROPOSAL_GAS" default:"200000000000000"`
	VoteGas     uint64 `envconfig:"DAO_VOTE_GAS" default:"300000000000000"`
	// DefaultProposalBond applies when a DAO policy omits the bond (0.1 NEAR).
	DefaultProposalBond string `envconfig:"DAO_DEFAULT_PROPOSAL_BOND" default:"100000000000000000000000"`
}

// Builder assembles add_proposal / act_proposal actions against a DAO
// contract. Every proposal kind shares the same shape: fetch policy, build
// kind-specific args, wrap in one add_proposal call bonded per the policy.
type Builder struct {
	rpc nearrpc.Caller
	cfg Config
}

func NewBuilder(rpc nearrpc.Caller, cfg Config) *Builder {
	return &Builder{rpc: rpc, cfg: cfg}
}

type ftMetadata struct {
	Decimals int    `json:"decimals"`
	Symbol   string `json:"symbol"`
}

func (b *Builder) proposalAction(ctx context.Context, daoID, description string, kind ProposalKind) (neartx.Action, error) {
	policy, err := b.Policy(ctx, daoID)
	if err != nil {
		return neartx.Action{}, err
	}

	bond := policy.ProposalBond
	if bond == "" {
		bond = b.cfg.DefaultProposalBond
	}

	return neartx.NewFunctionCall(
		"add_proposal",
		proposalArgs{Proposal: Proposal{Description: description, Kind: kind}},
		b.cfg.ProposalGas,
		bond,
	)
}

// TransferProposal builds a treasury transfer proposal. An empty tokenID
// means the native asset (24 decimals); otherwise decimals come from the
// token's ft_metadata. Quantity scales by exact integer arithmetic.
func (b *Builder) TransferProposal(ctx context.Context, daoID, receiverID, quantity, tokenID string) (neartx.Action, error) {
	decimals := util.NearDecimals
	if tokenID != "" {
		var meta ftMetadata
		if err := b.rpc.ViewJSON(ctx, tokenID, "ft_metadata", struct{}{}, &meta); err != nil {
			return neartx.Action{}, fmt.Errorf("dao: failed to resolve metadata of %s: %w", tokenID, err)
		}
		decimals = meta.Decimals
	}

	amount, err := util.ToBaseUnits(quantity, decimals)
	if err != nil {
		return neartx.Action{}, fmt.Errorf("dao: invalid transfer quantity: %w", err)
	}

	return b.proposalAction(ctx, daoID, "Transfer to "+receiverID+".", ProposalKind{
		Transfer: &TransferKind{
			TokenID:    tokenID,
			ReceiverID: receiverID,
			Amount:     amount.String(),
		},
	})
}

// AddMemberProposal builds a proposal adding the member to a role.
func (b *Builder) AddMemberProposal(ctx context.Context, daoID, memberID, role string) (neartx.Action, error) {
	return b.proposalAction(ctx, daoID, "Potential member", ProposalKind{
		AddMemberToRole: &MemberRoleKind{MemberID: memberID, Role: role},
	})
}

// RemoveMemberProposal builds a proposal removing the member from a role.
func (b *Builder) RemoveMemberProposal(ctx context.Context, daoID, memberID, role string) (neartx.Action, error) {
	return b.proposalAction(ctx, daoID, "Remove member", ProposalKind{
		RemoveMemberFromRole: &MemberRoleKind{MemberID: memberID, Role: role},
	})
}

// SwapProposal wraps the first step of a swap plan into a FunctionCall
// proposal executed by the DAO.
func (b *Builder) SwapProposal(ctx context.Context, daoID string, step refswap.Step, sendAmount, tokenOutID string) (neartx.Action, error) {
	calls := make([]ActionCall, 0, len(step.FunctionCalls))
	for _, fc := range step.FunctionCalls {
		calls = append(calls, ActionCall{
			MethodName: fc.MethodName,
			Args:       base64.StdEncoding.EncodeToString(fc.Args),
			Deposit:    fc.Deposit,
			Gas:        strconv.FormatUint(fc.Gas, 10),
		})
	}

	description := fmt.Sprintf("Swap %s Near to %s", sendAmount, tokenOutID)
	return b.proposalAction(ctx, daoID, description, ProposalKind{
		FunctionCall: &FunctionCallKind{
			ReceiverID: step.ReceiverID,
			Actions:    calls,
		},
	})
}

// VoteAction builds an act_proposal call. No policy lookup: voting carries
// fixed gas and zero deposit.
func (b *Builder) VoteAction(proposalID, action string) (neartx.Action, error) {
	id, err := strconv.ParseUint(proposalID, 10, 64)
	if err != nil {
		return neartx.Action{}, fmt.Errorf("dao: invalid proposal id %q: %w", proposalID, err)
	}

	return neartx.NewFunctionCall(
		"act_proposal",
		map[string]any{"id": id, "action": action},
		b.cfg.VoteGas,
		"0",
	)
}

// VoterDAOs filters the given DAOs down to those where the account may vote,
// keeping the membership order of the input. Policies are fetched
// concurrently; any single failure fails the whole lookup.
func (b *Builder) VoterDAOs(ctx context.Context, accountID string, daos []string) ([]string, error) {
	eligible := make([]bool, len(daos))

	g, ctx := errgroup.WithContext(ctx)
	for i, daoID := range daos {
		i, daoID := i, daoID
		g.Go(func() error {
			policy, err := b.Policy(ctx, daoID)
			if err != nil {
				return err
			}
			eligible[i] = policy.CanVote(accountID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dao: failed to resolve voter DAOs: %w", err)
	}

	voters := make([]string, 0, len(daos))
	for i, daoID := range daos {
		if eligible[i] {
			voters = append(voters, daoID)
		}
	}
	return voters, nil
}
