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
	"testing"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	alice = common.Address("alice")
	bob   = common.Address("bob")
	carol = common.Address("carol")
)

var (
	valueA = forge.NewFixed4Value([4]byte{0xaa, 0xbb, 0xcc, 0xdd})
	valueB = forge.NewFixed4Value([4]byte{0x01, 0x02, 0x03, 0x04})
)

func entryOp(kind forge.OpKind, key string, value forge.Value, owner common.Address, block, burn uint64) EntryOperation {
	return EntryOperation{
		Kind:  kind,
		Key:   []byte(key),
		Value: value,
		Origin: Origin{
			Owner: owner,
			Block: block,
			Burn:  burn,
		},
	}
}

func transferOp(key string, value forge.Value, owner, newOwner common.Address, block uint64) EntryOperation {
	op := entryOp(forge.OwnershipTransfer, key, value, owner, block, 1)
	op.NewOwner = newOwner
	return op
}

func createdLookup(t *testing.T, key string, value forge.Value, owner common.Address, block uint64) *EntryLookup {
	t.Helper()
	l := NewMutableEntryLookup(0)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, key, value, owner, block, 1)}))
	return l
}

func TestEntryLookup_Creation_InsertsRecord(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 5)

	record, found := l.LookupRecord([]byte("key"))
	require.True(t, found)
	require.True(t, record.Value.Equal(valueA))
	require.Equal(t, alice, record.Owner)
	require.Equal(t, uint64(5), record.ActivationBlock)
	require.Equal(t, 1, l.Size())
}

func TestEntryLookup_Creation_OfExistingKeyIsIgnored(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 5)

	op := entryOp(forge.Creation, "key", valueB, bob, 6, 100)
	require.False(t, l.IsCurrentlyValid(op))
	require.NoError(t, l.ExecuteOperations([]EntryOperation{op}))
	require.NoError(t, l.Apply(op))

	owner, _ := l.LookupOwner([]byte("key"))
	require.Equal(t, alice, owner)
}

func TestEntryLookup_QueriesOfUnknownKeyAreAbsent(t *testing.T) {
	l := NewMutableEntryLookup(0)
	_, found := l.Lookup([]byte("missing"))
	require.False(t, found)
	_, found = l.LookupOwner([]byte("missing"))
	require.False(t, found)
	_, found = l.LookupActivationBlock([]byte("missing"))
	require.False(t, found)
	_, found = l.LookupRecord([]byte("missing"))
	require.False(t, found)
}

func TestEntryLookup_IsCurrentlyValid(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 5)

	tests := map[string]struct {
		op    EntryOperation
		valid bool
	}{
		"creation of free key":           {entryOp(forge.Creation, "other", valueA, bob, 6, 1), true},
		"creation of taken key by owner": {entryOp(forge.Creation, "key", valueA, alice, 6, 1), true},
		"creation of taken key":          {entryOp(forge.Creation, "key", valueA, bob, 6, 1), false},
		"renewal by owner":               {entryOp(forge.Renewal, "key", valueA, alice, 6, 1), true},
		"renewal by stranger":            {entryOp(forge.Renewal, "key", valueA, bob, 6, 1), false},
		"renewal of free key":            {entryOp(forge.Renewal, "other", valueA, alice, 6, 1), false},
		"update by owner":                {entryOp(forge.Update, "key", valueB, alice, 6, 1), true},
		"update by stranger":             {entryOp(forge.Update, "key", valueB, bob, 6, 1), false},
		"deletion by owner":              {entryOp(forge.Deletion, "key", valueA, alice, 6, 1), true},
		"deletion by stranger":           {entryOp(forge.Deletion, "key", valueA, bob, 6, 1), false},
		"transfer by owner":              {transferOp("key", valueA, alice, bob, 6), true},
		"transfer without receiver":      {transferOp("key", valueA, alice, "", 6), true},
		"transfer by stranger":           {transferOp("key", valueA, bob, carol, 6), false},
		"creation without owner":         {entryOp(forge.Creation, "other", valueA, "", 6, 1), false},
		"unknown kind by owner":          {entryOp(forge.OpKind(0x40), "key", valueA, alice, 6, 1), true},
		"unknown kind by stranger":       {entryOp(forge.OpKind(0x40), "key", valueA, bob, 6, 1), false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.valid, l.IsCurrentlyValid(test.op))
		})
	}
}

func TestEntryLookup_ImmutableEntriesRejectUpdates(t *testing.T) {
	l := NewImmutableEntryLookup(0)
	require.False(t, l.SupportsUpdate())
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, "key", valueA, alice, 1, 1)}))

	update := entryOp(forge.Update, "key", valueB, alice, 2, 1)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{update}))
	require.NoError(t, l.Apply(update))

	value, _ := l.Lookup([]byte("key"))
	require.True(t, value.Equal(valueA))
}

func TestEntryLookup_Update_ReplacesValueButKeepsOwnerAndActivation(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 5)
	require.True(t, l.SupportsUpdate())

	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Update, "key", valueB, alice, 9, 1)}))

	record, _ := l.LookupRecord([]byte("key"))
	require.True(t, record.Value.Equal(valueB))
	require.Equal(t, alice, record.Owner)
	require.Equal(t, uint64(5), record.ActivationBlock)
}

func TestEntryLookup_Renewal_AdvancesActivationBlockOnly(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 5)

	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Renewal, "key", valueA, alice, 20, 1)}))
	block, _ := l.LookupActivationBlock([]byte("key"))
	require.Equal(t, uint64(20), block)

	// renewals never move the activation block backwards
	require.NoError(t, l.Apply(entryOp(forge.Renewal, "key", valueA, alice, 10, 1)))
	block, _ = l.LookupActivationBlock([]byte("key"))
	require.Equal(t, uint64(20), block)

	// a renewal naming a different value is ignored
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Renewal, "key", valueB, alice, 30, 1)}))
	block, _ = l.LookupActivationBlock([]byte("key"))
	require.Equal(t, uint64(20), block)
}

func TestEntryLookup_OwnershipTransfer_ChangesOwnerOnly(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 5)

	require.NoError(t, l.ExecuteOperations([]EntryOperation{transferOp("key", valueA, alice, bob, 6)}))
	record, _ := l.LookupRecord([]byte("key"))
	require.Equal(t, bob, record.Owner)
	require.True(t, record.Value.Equal(valueA))
	require.Equal(t, uint64(5), record.ActivationBlock)

	// the previous owner has lost control
	require.NoError(t, l.ExecuteOperations([]EntryOperation{transferOp("key", valueA, alice, carol, 7)}))
	owner, _ := l.LookupOwner([]byte("key"))
	require.Equal(t, bob, owner)
}

func TestEntryLookup_OwnershipTransfer_WithWrongValueIsIgnored(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 5)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{transferOp("key", valueB, alice, bob, 6)}))
	owner, _ := l.LookupOwner([]byte("key"))
	require.Equal(t, alice, owner)
}

func TestEntryLookup_Deletion_RequiresOwnerAndValue(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 5)

	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Deletion, "key", valueB, alice, 6, 1)}))
	_, found := l.Lookup([]byte("key"))
	require.True(t, found)

	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Deletion, "key", valueA, bob, 6, 1)}))
	_, found = l.Lookup([]byte("key"))
	require.True(t, found)

	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Deletion, "key", valueA, alice, 6, 1)}))
	_, found = l.Lookup([]byte("key"))
	require.False(t, found)
	require.Zero(t, l.Size())

	// the key is free again
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, "key", valueB, bob, 7, 1)}))
	owner, _ := l.LookupOwner([]byte("key"))
	require.Equal(t, bob, owner)
}

func TestEntryLookup_HigherBurnWinsConflictingCreations(t *testing.T) {
	l := NewMutableEntryLookup(0)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{
		entryOp(forge.Creation, "K", valueA, alice, 1, 10),
		entryOp(forge.Creation, "K", valueB, bob, 1, 9),
	}))

	owner, found := l.LookupOwner([]byte("K"))
	require.True(t, found)
	require.Equal(t, alice, owner)
	value, _ := l.Lookup([]byte("K"))
	require.True(t, value.Equal(valueA))
}

func TestEntryLookup_HigherBurnWinsRegardlessOfOrder(t *testing.T) {
	l := NewMutableEntryLookup(0)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{
		entryOp(forge.Creation, "K", valueB, bob, 1, 9),
		entryOp(forge.Creation, "K", valueA, alice, 1, 10),
	}))
	owner, _ := l.LookupOwner([]byte("K"))
	require.Equal(t, alice, owner)
}

func TestEntryLookup_EqualBurnsAreDecidedByTransactionPosition(t *testing.T) {
	first := entryOp(forge.Creation, "K", valueB, bob, 1, 10)
	first.Position = 1
	second := entryOp(forge.Creation, "K", valueA, alice, 1, 10)
	second.Position = 2

	for _, order := range [][]EntryOperation{{first, second}, {second, first}} {
		l := NewMutableEntryLookup(0)
		require.NoError(t, l.ExecuteOperations(order))
		owner, _ := l.LookupOwner([]byte("K"))
		require.Equal(t, bob, owner)
	}
}

func TestEntryLookup_OwnerCreationOnLiveKeyWinsAsNoOp(t *testing.T) {
	l := createdLookup(t, "K", valueA, alice, 10)

	creation := entryOp(forge.Creation, "K", valueB, alice, 50, 10)
	require.True(t, l.IsCurrentlyValid(creation))

	// the creation outbids the renewal and then has no effect
	require.NoError(t, l.ExecuteOperations([]EntryOperation{
		creation,
		entryOp(forge.Renewal, "K", valueA, alice, 50, 1),
	}))

	record, _ := l.LookupRecord([]byte("K"))
	require.Equal(t, uint64(10), record.ActivationBlock)
	require.True(t, record.Value.Equal(valueA))
	require.Equal(t, alice, record.Owner)
}

func TestEntryLookup_TransferWithoutReceiverWinsAsNoOp(t *testing.T) {
	l := createdLookup(t, "K", valueA, alice, 1)

	transfer := transferOp("K", valueA, alice, "", 2)
	transfer.Burn = 5
	require.NoError(t, l.ExecuteOperations([]EntryOperation{
		transfer,
		entryOp(forge.Update, "K", valueB, alice, 2, 1),
	}))

	record, _ := l.LookupRecord([]byte("K"))
	require.Equal(t, alice, record.Owner)
	require.True(t, record.Value.Equal(valueA))
}

func TestEntryLookup_FilterNonRelevantOperations_DropsInvalidBeforeRanking(t *testing.T) {
	l := createdLookup(t, "K", valueA, alice, 1)

	// the stranger's high burn update does not displace the owner's renewal
	ops := []EntryOperation{
		entryOp(forge.Update, "K", valueB, bob, 2, 100),
		entryOp(forge.Renewal, "K", valueA, alice, 2, 1),
		entryOp(forge.Creation, "other", valueB, bob, 2, 1),
	}
	filtered := l.FilterNonRelevantOperations(ops)
	require.Len(t, filtered, 2)
	require.Equal(t, forge.Renewal, filtered[0].Kind)
	require.Equal(t, []byte("other"), filtered[1].Key)
}

func TestEntryLookup_OnlyOneOperationPerKeyAndBlock(t *testing.T) {
	l := createdLookup(t, "K", valueA, alice, 1)

	// a transfer and an update in the same block: only the higher burn applies
	update := entryOp(forge.Update, "K", valueB, alice, 2, 5)
	transfer := transferOp("K", valueA, alice, bob, 2)
	transfer.Burn = 3
	require.NoError(t, l.ExecuteOperations([]EntryOperation{transfer, update}))

	record, _ := l.LookupRecord([]byte("K"))
	require.Equal(t, alice, record.Owner)
	require.True(t, record.Value.Equal(valueB))
}

func TestEntryLookup_CreationAndMutationInConsecutiveBlocks(t *testing.T) {
	l := NewMutableEntryLookup(0)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, "K", valueA, alice, 1, 1)}))
	l.SetBlockHeight(2)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Update, "K", valueB, alice, 2, 1)}))

	value, _ := l.Lookup([]byte("K"))
	require.True(t, value.Equal(valueB))
}

func TestEntryLookup_RemoveEntriesOlderThan_ExpiresAfterWindow(t *testing.T) {
	const window = 100
	l := createdLookup(t, "key", valueA, alice, 10)

	// processed block 10+window-1, the next block is 10+window
	l.SetBlockHeight(10 + window)
	require.Zero(t, l.RemoveEntriesOlderThan(window))
	_, found := l.Lookup([]byte("key"))
	require.True(t, found)

	// processed block 10+window
	l.SetBlockHeight(10 + window + 1)
	require.Equal(t, 1, l.RemoveEntriesOlderThan(window))
	_, found = l.Lookup([]byte("key"))
	require.False(t, found)
}

func TestEntryLookup_RemoveEntriesOlderThan_RenewalExtendsLifetime(t *testing.T) {
	const window = 10
	l := createdLookup(t, "key", valueA, alice, 1)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Renewal, "key", valueA, alice, 8, 1)}))

	l.SetBlockHeight(15)
	require.Zero(t, l.RemoveEntriesOlderThan(window))
	l.SetBlockHeight(19)
	require.Equal(t, 1, l.RemoveEntriesOlderThan(window))
}

func TestEntryLookup_RemoveEntriesOlderThan_HugeWindowDoesNotOverflow(t *testing.T) {
	l := createdLookup(t, "key", valueA, alice, 10)
	l.SetBlockHeight(1_000)
	require.Zero(t, l.RemoveEntriesOlderThan(^uint64(0)))
}

func TestEntryLookup_GetEntriesOfOwner_ListsOwnedRecordsSortedByKey(t *testing.T) {
	l := NewMutableEntryLookup(0)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{
		entryOp(forge.Creation, "c", valueA, alice, 1, 1),
		entryOp(forge.Creation, "a", valueA, alice, 1, 1),
		entryOp(forge.Creation, "b", valueB, bob, 1, 1),
	}))

	entries := l.GetEntriesOfOwner(alice)
	require.Len(t, entries, 2)
	require.Equal(t, []byte("a"), entries[0].Key)
	require.Equal(t, []byte("c"), entries[1].Key)
	require.Empty(t, l.GetEntriesOfOwner(carol))
}

func TestEntryLookup_SlotsAreReusedAfterRemoval(t *testing.T) {
	l := createdLookup(t, "a", valueA, alice, 1)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Deletion, "a", valueA, alice, 2, 1)}))
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, "b", valueB, bob, 3, 1)}))

	require.Len(t, l.slots, 1)
	owner, _ := l.LookupOwner([]byte("b"))
	require.Equal(t, bob, owner)
}

func TestEntryLookup_Clear_ResetsToStartHeight(t *testing.T) {
	l := NewMutableEntryLookup(42)
	require.Equal(t, uint64(42), l.BlockHeight())
	require.NoError(t, l.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, "a", valueA, alice, 42, 1)}))
	l.SetBlockHeight(50)

	l.Clear()
	require.Equal(t, uint64(42), l.BlockHeight())
	require.Zero(t, l.Size())
	require.Equal(t, common.Hash{}, l.GetStateHash())
}

func TestEntryLookup_RestoreReproducesState(t *testing.T) {
	l := NewMutableEntryLookup(0)
	require.NoError(t, l.ExecuteOperations([]EntryOperation{
		entryOp(forge.Creation, "a", valueA, alice, 1, 1),
		entryOp(forge.Creation, "b", valueB, bob, 1, 1),
	}))
	l.SetBlockHeight(7)

	restored := NewMutableEntryLookup(0)
	require.NoError(t, restored.Restore(l.Entries(), l.BlockHeight()))
	require.Equal(t, l.GetStateHash(), restored.GetStateHash())
	require.Equal(t, uint64(7), restored.BlockHeight())

	require.Error(t, restored.Restore(append(l.Entries(), l.Entries()...), 7))
}

func TestEntryLookup_StateHashDependsOnContentOnly(t *testing.T) {
	a := NewMutableEntryLookup(0)
	require.NoError(t, a.ExecuteOperations([]EntryOperation{
		entryOp(forge.Creation, "x", valueA, alice, 1, 1),
		entryOp(forge.Creation, "y", valueB, bob, 1, 1),
	}))
	b := NewMutableEntryLookup(0)
	require.NoError(t, b.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, "y", valueB, bob, 1, 1)}))
	require.NotEqual(t, a.GetStateHash(), b.GetStateHash())
	require.NoError(t, b.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, "x", valueA, alice, 1, 1)}))
	require.Equal(t, a.GetStateHash(), b.GetStateHash())
}

func TestEntryLookup_GetMemoryFootprint_CountsItems(t *testing.T) {
	l := createdLookup(t, "a", valueA, alice, 1)
	mf := l.GetMemoryFootprint()
	require.NotZero(t, mf.Total())
	require.Contains(t, mf.String(), "(items: 1)")
}

func TestEntryLookup_MutationsRequireLiveOwner(t *testing.T) {
	owners := []common.Address{alice, bob, carol}
	kinds := []forge.OpKind{forge.Renewal, forge.OwnershipTransfer, forge.Update, forge.Deletion}
	values := []forge.Value{valueA, valueB}

	rapid.Check(t, func(t *rapid.T) {
		l := NewMutableEntryLookup(0)
		creator := rapid.SampledFrom(owners).Draw(t, "creator")
		if err := l.ExecuteOperations([]EntryOperation{entryOp(forge.Creation, "K", valueA, creator, 1, 1)}); err != nil {
			t.Fatalf("creation failed: %v", err)
		}

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before, live := l.LookupRecord([]byte("K"))
			op := entryOp(
				rapid.SampledFrom(kinds).Draw(t, "kind"),
				"K",
				rapid.SampledFrom(values).Draw(t, "value"),
				rapid.SampledFrom(owners).Draw(t, "owner"),
				uint64(i+2),
				1,
			)
			op.NewOwner = rapid.SampledFrom(owners).Draw(t, "newOwner")
			if err := l.ExecuteOperations([]EntryOperation{op}); err != nil {
				t.Fatalf("execution failed: %v", err)
			}
			after, stillLive := l.LookupRecord([]byte("K"))
			if !live {
				continue
			}
			if op.Owner != before.Owner {
				if !stillLive || !after.Value.Equal(before.Value) || after.Owner != before.Owner || after.ActivationBlock != before.ActivationBlock {
					t.Fatalf("operation %v of non-owner changed record %v to %v", op, before, after)
				}
			}
			if stillLive && op.Kind == forge.OwnershipTransfer && !after.Value.Equal(before.Value) {
				t.Fatalf("transfer changed value")
			}
			if stillLive && op.Kind == forge.Update && (after.Owner != before.Owner || after.ActivationBlock != before.ActivationBlock) {
				t.Fatalf("update changed owner or activation block")
			}
		}
	})
}
