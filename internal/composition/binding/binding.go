// Package binding wires the default collaborators: an encrypted wallet file
// for local state and the JSON/HTTP notary client for transport.
package binding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"otme/go-client/internal/config"
	"otme/go-client/internal/domains/contracts"
	"otme/go-client/internal/notary"
	"otme/go-client/internal/securestore"
	"otme/go-client/internal/wallet"
	"otme/go-client/pkg/models"
)

const DefaultDataDir = "otme-data"

var ErrNotInitialized = errors.New("binding is not initialized")

// Binding is the process-wide contracts.Binding. Initialize and Shutdown
// are idempotent.
type Binding struct {
	dataDir string
	wallet  *wallet.Store
	client  *notary.Client

	mu          sync.RWMutex
	initialized bool
}

func New(dataDir string, store *wallet.Store, opts ...notary.Option) *Binding {
	return &Binding{
		dataDir: strings.TrimSpace(dataDir),
		wallet:  store,
		client:  notary.NewClient(store, opts...),
	}
}

// FromConfig resolves the wallet path under the data dir unless the wallet
// file is absolute.
func FromConfig(cfg config.Config, opts ...notary.Option) *Binding {
	cfg.Client.DataDir = strings.TrimSpace(cfg.Client.DataDir)
	if cfg.Client.DataDir == "" {
		cfg.Client.DataDir = DefaultDataDir
	}
	store := wallet.NewFile(cfg.WalletPath(), cfg.WalletPassphrase, securestore.DefaultKDFParams())
	return New(cfg.Client.DataDir, store, opts...)
}

// Wallet exposes the store for commands that edit server contracts.
func (b *Binding) Wallet() *wallet.Store {
	return b.wallet
}

func (b *Binding) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.wallet == nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, errors.New("no wallet configured"))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	if b.dataDir != "" {
		if err := os.MkdirAll(b.dataDir, 0o700); err != nil {
			return contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, fmt.Errorf("create data dir: %w", err))
		}
	}
	b.initialized = true
	return nil
}

func (b *Binding) Shutdown(context.Context) error {
	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()
	return nil
}

func (b *Binding) ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

func (b *Binding) LoadLocalStore(ctx context.Context) (contracts.LocalStore, error) {
	if !b.ready() {
		return nil, ErrNotInitialized
	}
	if err := b.wallet.Load(ctx); err != nil {
		return nil, err
	}
	return b.wallet, nil
}

func (b *Binding) CountLocalServerContracts() (int, error) {
	if !b.ready() {
		return 0, ErrNotInitialized
	}
	return b.wallet.CountServerContracts(), nil
}

func (b *Binding) Submit(ctx context.Context, req models.OperationRequest) (models.RawReply, error) {
	if !b.ready() {
		return nil, contracts.NewTransportError(contracts.TransportPrecondition, req.Operation(), ErrNotInitialized)
	}
	return b.client.Submit(ctx, req)
}

var _ contracts.Binding = (*Binding)(nil)
