package contracts

import (
	"context"

	"otme/go-client/pkg/models"
)

// Transport performs one network round trip to a notary. Connection
// handling, signing and serialization live behind it.
type Transport interface {
	Submit(ctx context.Context, req models.OperationRequest) (models.RawReply, error)
}

// Sequencer hands out request numbers per (notary, nym) and accepts the
// server's value after a resynchronization.
type Sequencer interface {
	NextRequestNumber(notaryID, nymID string) (int64, error)
	SetRequestNumber(notaryID, nymID string, next int64) error
}

// MintStore keeps mint artifacts that withdrawals depend on.
type MintStore interface {
	LoadMint(notaryID, assetID string) ([]byte, bool, error)
	SaveMint(notaryID, assetID string, mint []byte) error
}

// LocalStore is everything the core needs from local persistence.
type LocalStore interface {
	Sequencer
	MintStore
	CountServerContracts() int
}

// Binding is the process-wide collaborator that owns transport and local
// state. Initialize and Shutdown bracket every other call.
type Binding interface {
	Transport
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	LoadLocalStore(ctx context.Context) (LocalStore, error)
	CountLocalServerContracts() (int, error)
}
