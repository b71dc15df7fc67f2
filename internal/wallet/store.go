// Package wallet is the local store behind a session: server contracts,
// cached mints and per-identity request numbers.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/internal/notary"
	"otme/go-client/internal/securestore"
)

const sealLabel = "otme-wallet"

var ErrNotLoaded = errors.New("wallet is not loaded")

// ServerContract is what the client knows about one notary.
type ServerContract struct {
	NotaryID string `json:"notary_id"`
	Name     string `json:"name,omitempty"`
	Endpoint string `json:"endpoint"`
}

type snapshot struct {
	Version        int                       `json:"version"`
	Servers        map[string]ServerContract `json:"servers"`
	Mints          map[string][]byte         `json:"mints"`
	RequestNumbers map[string]int64          `json:"request_numbers"`
}

func emptySnapshot() snapshot {
	return snapshot{
		Version:        1,
		Servers:        make(map[string]ServerContract),
		Mints:          make(map[string][]byte),
		RequestNumbers: make(map[string]int64),
	}
}

// Store is safe for concurrent use. A Store opened with NewFile persists
// every mutation; one from NewMemory keeps state in memory only.
type Store struct {
	path       string
	passphrase string
	sealer     *securestore.Sealer

	mu     sync.Mutex
	loaded bool
	state  snapshot
}

func NewMemory() *Store {
	return &Store{loaded: true, state: emptySnapshot()}
}

func NewFile(path, passphrase string, params securestore.KDFParams) *Store {
	return &Store{
		path:       strings.TrimSpace(path),
		passphrase: passphrase,
		sealer:     securestore.NewSealer(params),
	}
}

func (s *Store) persistent() bool {
	return s.path != ""
}

// Load reads the wallet file. A missing file starts an empty wallet.
func (s *Store) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.persistent() {
		s.loaded = true
		return nil
	}
	if s.passphrase == "" {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryCrypto, securestore.ErrNoSecret)
	}
	state := emptySnapshot()
	if _, err := securestore.ReadJSON(s.path, s.passphrase, sealLabel, &state); err != nil {
		category := contracts.ErrorCategoryStorage
		if errors.Is(err, securestore.ErrAuthFailed) {
			category = contracts.ErrorCategoryCrypto
		}
		return contracts.WrapCategorizedError(category, fmt.Errorf("load wallet %s: %w", s.path, err))
	}
	if state.Servers == nil {
		state.Servers = make(map[string]ServerContract)
	}
	if state.Mints == nil {
		state.Mints = make(map[string][]byte)
	}
	if state.RequestNumbers == nil {
		state.RequestNumbers = make(map[string]int64)
	}
	s.state = state
	s.loaded = true
	return nil
}

// saveLocked must be called with mu held.
func (s *Store) saveLocked() error {
	if !s.persistent() {
		return nil
	}
	if err := s.sealer.WriteJSON(s.path, s.passphrase, sealLabel, s.state); err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, fmt.Errorf("save wallet: %w", err))
	}
	return nil
}

func (s *Store) AddServer(sc ServerContract) error {
	sc.NotaryID = strings.TrimSpace(sc.NotaryID)
	sc.Endpoint = strings.TrimSpace(sc.Endpoint)
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.NotaryID == "" {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, errors.New("notary id is required"))
	}
	if _, err := notary.EndpointURL(sc.Endpoint); err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	s.state.Servers[sc.NotaryID] = sc
	return s.saveLocked()
}

// Servers returns known server contracts ordered by notary id.
func (s *Store) Servers() []ServerContract {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ServerContract, 0, len(s.state.Servers))
	for _, sc := range s.state.Servers {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotaryID < out[j].NotaryID })
	return out
}

func (s *Store) CountServerContracts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Servers)
}

func (s *Store) ServerEndpoint(notaryID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.state.Servers[strings.TrimSpace(notaryID)]
	if !ok || sc.Endpoint == "" {
		return "", false
	}
	return sc.Endpoint, true
}

func pairKey(a, b string) string {
	return strings.TrimSpace(a) + "|" + strings.TrimSpace(b)
}

func (s *Store) LoadMint(notaryID, assetID string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, false, ErrNotLoaded
	}
	mint, ok := s.state.Mints[pairKey(notaryID, assetID)]
	if !ok || len(mint) == 0 {
		return nil, false, nil
	}
	return append([]byte(nil), mint...), true, nil
}

func (s *Store) SaveMint(notaryID, assetID string, mint []byte) error {
	if len(mint) == 0 {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, errors.New("mint is empty"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	s.state.Mints[pairKey(notaryID, assetID)] = append([]byte(nil), mint...)
	return s.saveLocked()
}

// NextRequestNumber hands out the current number for the identity and
// advances it. Unknown identities start at 1.
func (s *Store) NextRequestNumber(notaryID, nymID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return 0, ErrNotLoaded
	}
	key := pairKey(notaryID, nymID)
	n := s.state.RequestNumbers[key]
	if n < 1 {
		n = 1
	}
	s.state.RequestNumbers[key] = n + 1
	if err := s.saveLocked(); err != nil {
		s.state.RequestNumbers[key] = n
		return 0, err
	}
	return n, nil
}

func (s *Store) SetRequestNumber(notaryID, nymID string, next int64) error {
	if next < 1 {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, fmt.Errorf("request number %d out of range", next))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	s.state.RequestNumbers[pairKey(notaryID, nymID)] = next
	return s.saveLocked()
}
