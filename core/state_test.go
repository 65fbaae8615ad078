package core

import "testing"

func addrFromByte(b byte) Address {
	var a Address
	a[19] = b
	return a
}

func TestAddressKeyRoundTrip(t *testing.T) {
	addr := addrFromByte(0x7a)
	key := AddressToKey(addr)
	for i := 0; i < 12; i++ {
		if key[i] != 0 {
			t.Fatalf("high bytes of key must be zero, got %x", key[:12])
		}
	}
	if back := KeyToAddress(key); back != addr {
		t.Fatalf("KeyToAddress(AddressToKey(addr)) = %v, want %v", back, addr)
	}
}

func TestStateManagerMissingAccountIsZero(t *testing.T) {
	sm := NewStateManager()
	acc := sm.Get(addrFromByte(1))
	if !acc.IsEmpty() {
		t.Fatalf("unset account should be empty")
	}
}

func TestStateManagerSetGetRoot(t *testing.T) {
	sm := NewStateManager()
	addr := addrFromByte(2)
	acc := AccountState{Balance: 500, Nonce: 1, HatScore: 10}
	if err := sm.Set(addr, acc); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got := sm.Get(addr)
	if got != acc {
		t.Fatalf("Get() = %+v, want %+v", got, acc)
	}

	root := sm.GetRoot()
	if root == (Hash{}) {
		t.Fatalf("root should not be zero after a write")
	}

	proof, err := sm.GenerateInclusionProof(addr)
	if err != nil {
		t.Fatalf("GenerateInclusionProof: %v", err)
	}
	if !VerifyAccountProof(proof, root, addr, acc) {
		t.Fatalf("account inclusion proof failed to verify")
	}
}

func TestStateManagerWritingEmptyAccountDeletes(t *testing.T) {
	sm := NewStateManager()
	addr := addrFromByte(3)
	if err := sm.Set(addr, AccountState{Balance: 10}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	rootWithValue := sm.GetRoot()

	if err := sm.Set(addr, AccountState{}); err != nil {
		t.Fatalf("Set empty: %v", err)
	}
	if sm.GetRoot() == rootWithValue {
		t.Fatalf("writing the empty account should remove the leaf")
	}
	if sm.GetRoot() != NewStateManager().GetRoot() {
		t.Fatalf("root should match a fresh empty tree after deleting the only account")
	}
}

func TestStateManagerCreditDebit(t *testing.T) {
	sm := NewStateManager()
	addr := addrFromByte(4)
	if err := sm.Credit(addr, 100); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if bal := sm.Get(addr).Balance; bal != 100 {
		t.Fatalf("balance = %d, want 100", bal)
	}
	if err := sm.Debit(addr, 40); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if bal := sm.Get(addr).Balance; bal != 60 {
		t.Fatalf("balance = %d, want 60", bal)
	}
	if err := sm.Debit(addr, 1000); err == nil {
		t.Fatalf("expected error debiting more than the balance")
	}
}

func TestAccountStateHatScoreValidation(t *testing.T) {
	sm := NewStateManager()
	if err := sm.Set(addrFromByte(5), AccountState{HatScore: 101}); err == nil {
		t.Fatalf("expected error for hat score out of range")
	}
}
