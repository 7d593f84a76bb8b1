package confidential

import (
	"encoding/binary"

	"github.com/vaultsandbox/fundvault/authority"
)

// Intent actions understood by registries and ledgers.
const (
	ActionConstant    = "registry.constant"
	ActionImport      = "registry.import"
	ActionAdd         = "registry.add"
	ActionSub         = "registry.sub"
	ActionGe          = "registry.ge"
	ActionSelect      = "registry.select"
	ActionGrant       = "registry.grant"
	ActionReveal      = "registry.reveal"
	ActionInitAccount = "ledger.initialize_account"
	ActionTransfer    = "ledger.transfer"
	ActionMintTo      = "ledger.mint_to"
)

// ConstantIntent is signed to encrypt a constant.
func ConstantIntent(value uint64) authority.Intent {
	return authority.NewIntent(ActionConstant, u64(value))
}

// ImportIntent is signed to import a ciphertext.
func ImportIntent(ciphertext []byte) authority.Intent {
	return authority.NewIntent(ActionImport, ciphertext)
}

// BinaryIntent is signed for two-operand operations such as ActionAdd.
func BinaryIntent(action string, a, b Handle) authority.Intent {
	return authority.NewIntent(action, a[:], b[:])
}

// SelectIntent is signed for a conditional select.
func SelectIntent(cond, ifTrue, ifFalse Handle) authority.Intent {
	return authority.NewIntent(ActionSelect, cond[:], ifTrue[:], ifFalse[:])
}

// GrantIntent is signed to grant or revoke access on h.
func GrantIntent(h Handle, grantee authority.Address, canRead bool) authority.Intent {
	flag := []byte{0}
	if canRead {
		flag[0] = 1
	}
	return authority.NewIntent(ActionGrant, h[:], grantee[:], flag)
}

// RevealIntent is signed to decrypt h.
func RevealIntent(h Handle) authority.Intent {
	return authority.NewIntent(ActionReveal, h[:])
}

// InitAccountIntent is signed by the owner of a new account.
func InitAccountIntent(account, owner, mint authority.Address) authority.Intent {
	return authority.NewIntent(ActionInitAccount, account[:], owner[:], mint[:])
}

// TransferIntent is signed by the owner of the source account.
func TransferIntent(source, destination authority.Address, ciphertext []byte) authority.Intent {
	return authority.NewIntent(ActionTransfer, source[:], destination[:], ciphertext)
}

// MintToIntent is signed by a mint authority.
func MintToIntent(mint, account authority.Address, ciphertext []byte) authority.Intent {
	return authority.NewIntent(ActionMintTo, mint[:], account[:], ciphertext)
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
