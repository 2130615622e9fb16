package neartx

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/sync/errgroup"

	"github.com/jaswinder6991/dao-agent-next/internal/nearrpc"
	"github.com/jaswinder6991/dao-agent-next/internal/upstream"
)

const blockHashLen = 32

// Transaction is the unsigned transaction descriptor returned to callers for
// signing and broadcast. Never stored; built fresh per request.
type Transaction struct {
	SignerID   string   `json:"signer_id"`
	PublicKey  string   `json:"public_key"`
	ReceiverID string   `json:"receiver_id"`
	Nonce      uint64   `json:"nonce"`
	Actions    []Action `json:"actions"`
	// BlockHash anchors transaction validity to a recent block,
	// base58-encoded as the chain expects.
	BlockHash string `json:"block_hash"`
}

// Assembler combines signer identity, receiver and actions with a freshly
// fetched nonce and block hash. Pure composition, no business logic.
type Assembler struct {
	rpc nearrpc.Caller
}

func NewAssembler(rpc nearrpc.Caller) *Assembler {
	return &Assembler{rpc: rpc}
}

// Assemble fetches the signer's access-key nonce and the latest block hash
// concurrently and wraps the actions into an unsigned transaction. Stale
// nonces or hashes are rejected by the chain, not here.
func (a *Assembler) Assemble(
	ctx context.Context,
	signerID, publicKey, receiverID string,
	actions []Action,
) (*Transaction, error) {
	var (
		nonce     uint64
		blockHash string
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nonce, err = a.rpc.FetchNonce(ctx, signerID, publicKey)
		return err
	})
	g.Go(func() error {
		var err error
		blockHash, err = a.rpc.LatestBlockHash(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("neartx: failed to assemble transaction: %w", err)
	}

	if decoded := base58.Decode(blockHash); len(decoded) != blockHashLen {
		return nil, upstream.Violation("nearrpc", fmt.Sprintf("block hash %q is not a base58 32-byte hash", blockHash), nil)
	}

	return &Transaction{
		SignerID:   signerID,
		PublicKey:  publicKey,
		ReceiverID: receiverID,
		Nonce:      nonce,
		Actions:    actions,
		BlockHash:  blockHash,
	}, nil
}
