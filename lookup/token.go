// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package lookup

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"unsafe"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"github.com/holiman/uint256"
)

// TokenLookup maintains the ledgers of all utility tokens. A ledger maps
// owners to balances; the balances of a token never sum up to more than the
// amount declared at its creation.
//
// NOTE: this implementation is NOT thread-safe. Concurrent access must be
// externally synchronized.
type TokenLookup struct {
	startHeight uint64
	height      uint64 // < height of the next block to be processed
	tokens      map[string]*ledger
}

type ledger struct {
	created  uint64 // < amount declared at creation
	balances map[common.Address]uint64
}

// TokenLedger is the exported form of a token's ledger.
type TokenLedger struct {
	ID       []byte
	Created  uint64
	Balances []TokenBalance
}

type spendGroup struct {
	id    string
	owner common.Address
}

var _ Engine[TokenOperation] = (*TokenLookup)(nil)

// NewTokenLookup creates an empty token lookup.
func NewTokenLookup(startHeight uint64) *TokenLookup {
	return &TokenLookup{
		startHeight: startHeight,
		height:      startHeight,
		tokens:      make(map[string]*ledger),
	}
}

func (l *TokenLookup) BlockHeight() uint64 {
	return l.height
}

func (l *TokenLookup) SetBlockHeight(height uint64) {
	l.height = height
}

// Size returns the number of existing tokens.
func (l *TokenLookup) Size() int {
	return len(l.tokens)
}

// IsCurrentlyValid reports whether the operation is admissible against the
// current state: a Creation of an unused id requires a non-zero amount, any
// operation on an existing token requires the issuer to hold a balance of it.
// Whether the balance suffices is decided by FilterNonRelevantOperations and
// whether the operation has an effect by Apply.
func (l *TokenLookup) IsCurrentlyValid(op TokenOperation) bool {
	if op.Owner.IsEmpty() {
		return false
	}
	token, found := l.tokens[string(op.ID)]
	if !found {
		return op.Kind == forge.Creation && op.Amount > 0
	}
	_, holds := token.balances[op.Owner]
	return holds
}

// FilterNonRelevantOperations drops operations that are not currently valid
// and resolves conflicts within the batch. Creations of the same id compete
// and only the one with the highest burn survives. Transfers and deletions
// are grouped by token and issuer; each group is walked in priority order
// accumulating the spent amounts, and the first operation exceeding the
// issuer's balance cuts off the rest of its group.
func (l *TokenLookup) FilterNonRelevantOperations(ops []TokenOperation) []TokenOperation {
	creations := make(map[string]int)
	spends := make(map[spendGroup][]TokenOperation)
	var groups []spendGroup
	var res []TokenOperation

	for _, op := range ops {
		if !l.IsCurrentlyValid(op) {
			continue
		}
		id := string(op.ID)
		if op.Kind == forge.Creation {
			if pos, found := creations[id]; found {
				if op.hasPriorityOver(res[pos].Origin) {
					res[pos] = op
				}
				continue
			}
			creations[id] = len(res)
			res = append(res, op)
			continue
		}
		group := spendGroup{id: id, owner: op.Owner}
		if _, found := spends[group]; !found {
			groups = append(groups, group)
		}
		spends[group] = append(spends[group], op)
	}

	for _, group := range groups {
		candidates := spends[group]
		slices.SortStableFunc(candidates, func(a, b TokenOperation) int {
			if a.hasPriorityOver(b.Origin) {
				return -1
			}
			if b.hasPriorityOver(a.Origin) {
				return 1
			}
			return 0
		})

		available := uint256.NewInt(l.tokens[group.id].balances[group.owner])
		total := new(uint256.Int)
		for _, op := range candidates {
			if _, overflow := total.AddOverflow(total, uint256.NewInt(op.Amount)); overflow {
				break
			}
			if total.Gt(available) {
				break
			}
			res = append(res, op)
		}
	}
	return res
}

// ExecuteOperations applies the operations of a single block.
func (l *TokenLookup) ExecuteOperations(ops []TokenOperation) error {
	var errs []error
	for _, op := range l.FilterNonRelevantOperations(ops) {
		if err := l.Apply(op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply performs a single operation. Operations whose preconditions do not
// hold, e.g. spending more than the issuer holds, leave the state untouched.
func (l *TokenLookup) Apply(op TokenOperation) error {
	id := string(op.ID)
	token, found := l.tokens[id]
	switch op.Kind {
	case forge.Creation:
		if !found && op.Amount > 0 {
			l.tokens[id] = &ledger{
				created:  op.Amount,
				balances: map[common.Address]uint64{op.Owner: op.Amount},
			}
		}
	case forge.OwnershipTransfer:
		if !found || op.NewOwner.IsEmpty() || op.Amount == 0 || !token.debit(op.Owner, op.Amount) {
			return nil
		}
		token.balances[op.NewOwner] += op.Amount
	case forge.Deletion:
		if !found || !token.debit(op.Owner, op.Amount) {
			return nil
		}
		if len(token.balances) == 0 {
			delete(l.tokens, id)
		}
	default:
		return fmt.Errorf("unsupported token operation kind %v", op.Kind)
	}
	return nil
}

// debit removes the amount from the owner's balance if it suffices. Owners
// left with a zero balance are dropped from the ledger.
func (t *ledger) debit(owner common.Address, amount uint64) bool {
	balance, found := t.balances[owner]
	if !found || balance < amount {
		return false
	}
	if balance == amount {
		delete(t.balances, owner)
	} else {
		t.balances[owner] = balance - amount
	}
	return true
}

// GetBalanceOf returns the balance the owner holds of the token.
func (l *TokenLookup) GetBalanceOf(id []byte, owner common.Address) (uint64, bool) {
	token, found := l.tokens[string(id)]
	if !found {
		return 0, false
	}
	balance, found := token.balances[owner]
	return balance, found
}

// GetSupply returns the sum of all balances of the token.
func (l *TokenLookup) GetSupply(id []byte) (uint64, bool) {
	token, found := l.tokens[string(id)]
	if !found {
		return 0, false
	}
	return token.supply(), true
}

// GetCreatedAmount returns the amount declared when the token was created.
func (l *TokenLookup) GetCreatedAmount(id []byte) (uint64, bool) {
	token, found := l.tokens[string(id)]
	if !found {
		return 0, false
	}
	return token.created, true
}

func (t *ledger) supply() uint64 {
	total := new(uint256.Int)
	for _, balance := range t.balances {
		total.Add(total, uint256.NewInt(balance))
	}
	// balances are bounded by the created amount, which fits into 64 bits
	return total.Uint64()
}

// GetUtilityTokensOfOwner lists the balances of all tokens the owner holds,
// ordered by token id.
func (l *TokenLookup) GetUtilityTokensOfOwner(owner common.Address) []TokenBalance {
	var res []TokenBalance
	for id, token := range l.tokens {
		if balance, found := token.balances[owner]; found {
			res = append(res, TokenBalance{ID: []byte(id), Owner: owner, Balance: balance})
		}
	}
	slices.SortFunc(res, func(a, b TokenBalance) int {
		return bytes.Compare(a.ID, b.ID)
	})
	return res
}

// Ledgers lists all tokens with their balances, ordered by id and owner.
func (l *TokenLookup) Ledgers() []TokenLedger {
	res := make([]TokenLedger, 0, len(l.tokens))
	for _, id := range slices.Sorted(maps.Keys(l.tokens)) {
		token := l.tokens[id]
		entry := TokenLedger{ID: []byte(id), Created: token.created}
		for _, owner := range slices.Sorted(maps.Keys(token.balances)) {
			entry.Balances = append(entry.Balances, TokenBalance{
				ID:      []byte(id),
				Owner:   owner,
				Balance: token.balances[owner],
			})
		}
		res = append(res, entry)
	}
	return res
}

// Restore replaces the current state by the given ledgers and height.
func (l *TokenLookup) Restore(ledgers []TokenLedger, height uint64) error {
	tokens := make(map[string]*ledger, len(ledgers))
	for _, entry := range ledgers {
		id := string(entry.ID)
		if _, found := tokens[id]; found {
			return fmt.Errorf("duplicate token %x in restored ledgers", entry.ID)
		}
		token := &ledger{created: entry.Created, balances: make(map[common.Address]uint64, len(entry.Balances))}
		for _, balance := range entry.Balances {
			if balance.Balance > 0 {
				token.balances[balance.Owner] += balance.Balance
			}
		}
		if total := token.supply(); total > token.created || len(token.balances) == 0 {
			return fmt.Errorf("invalid ledger for token %x: supply %d, created %d", entry.ID, total, token.created)
		}
		tokens[id] = token
	}
	l.tokens = tokens
	l.height = height
	return nil
}

// Clear removes all tokens and resets the height to the start height.
func (l *TokenLookup) Clear() {
	l.tokens = make(map[string]*ledger)
	l.height = l.startHeight
}

// GetStateHash computes a digest over all ledgers. The hash of an empty
// lookup is zero.
func (l *TokenLookup) GetStateHash() common.Hash {
	if len(l.tokens) == 0 {
		return common.Hash{}
	}
	hasher := newStateHasher()
	for _, entry := range l.Ledgers() {
		hasher.writeBytes(entry.ID)
		hasher.writeUint64(entry.Created)
		hasher.writeUint64(uint64(len(entry.Balances)))
		for _, balance := range entry.Balances {
			hasher.writeBytes([]byte(balance.Owner))
			hasher.writeUint64(balance.Balance)
		}
	}
	return hasher.sum()
}

// GetMemoryFootprint provides the size of the lookup in memory in bytes.
func (l *TokenLookup) GetMemoryFootprint() *common.MemoryFootprint {
	size := uintptr(0)
	balances := 0
	for id, token := range l.tokens {
		size += uintptr(len(id)) + unsafe.Sizeof(ledger{})
		for owner := range token.balances {
			size += uintptr(len(owner)) + unsafe.Sizeof(owner) + 8
		}
		balances += len(token.balances)
	}
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*l))
	mf.AddChild("ledgers", common.NewMemoryFootprint(size))
	mf.SetNote(fmt.Sprintf("(tokens: %d, balances: %d)", len(l.tokens), balances))
	return mf
}
