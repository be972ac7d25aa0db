package ledger

import (
	"errors"
	"fmt"
)

// Directory resolves the fixed pair of parties and the configured wallets.
// The order of Identities is part of the balance sign convention and must
// stay stable across restarts.
type Directory interface {
	Identities() [2]string
	OtherIdentity(one string) (string, error)
	WalletNames() []string
	SymbolFor(wallet string) (string, error)
}

// WalletDef is one configured wallet.
type WalletDef struct {
	Name   string
	Symbol string
}

// Roster is the in-process Directory built from configuration.
type Roster struct {
	parties [2]string
	wallets []WalletDef
	symbols map[string]string
}

var _ Directory = (*Roster)(nil)

// NewRoster validates and freezes the parties and wallets.
func NewRoster(partyA, partyB string, wallets []WalletDef) (*Roster, error) {
	if partyA == "" || partyB == "" {
		return nil, errors.New("roster: party names must not be empty")
	}
	if partyA == partyB {
		return nil, fmt.Errorf("roster: parties must differ, both are %q", partyA)
	}
	if len(wallets) == 0 {
		return nil, errors.New("roster: at least one wallet is required")
	}
	symbols := make(map[string]string, len(wallets))
	for _, w := range wallets {
		if w.Name == "" {
			return nil, errors.New("roster: wallet name must not be empty")
		}
		if w.Symbol == "" {
			return nil, fmt.Errorf("roster: wallet %q has no symbol", w.Name)
		}
		if _, dup := symbols[w.Name]; dup {
			return nil, fmt.Errorf("roster: duplicate wallet %q", w.Name)
		}
		symbols[w.Name] = w.Symbol
	}
	ws := make([]WalletDef, len(wallets))
	copy(ws, wallets)
	return &Roster{parties: [2]string{partyA, partyB}, wallets: ws, symbols: symbols}, nil
}

func (r *Roster) Identities() [2]string { return r.parties }

func (r *Roster) OtherIdentity(one string) (string, error) {
	switch one {
	case r.parties[0]:
		return r.parties[1], nil
	case r.parties[1]:
		return r.parties[0], nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIdentity, one)
}

func (r *Roster) WalletNames() []string {
	names := make([]string, len(r.wallets))
	for i, w := range r.wallets {
		names[i] = w.Name
	}
	return names
}

func (r *Roster) SymbolFor(wallet string) (string, error) {
	s, ok := r.symbols[wallet]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownWallet, wallet)
	}
	return s, nil
}

// IsParty reports whether name is one of the two identities.
func IsParty(dir Directory, name string) bool {
	ids := dir.Identities()
	return name != "" && (name == ids[0] || name == ids[1])
}

// IsWallet reports whether name is a configured wallet.
func IsWallet(dir Directory, name string) bool {
	_, err := dir.SymbolFor(name)
	return err == nil
}
