package authority

import (
	"github.com/vaultsandbox/fundvault/internal/codec"
)

// intentDomain prefixes every signed intent so signatures over intents
// cannot be replayed as signatures over any other message type.
const intentDomain = "fundvault.intent.v1\x00"

// Intent is the message a principal authorizes: a named action and its
// ordered arguments.
type Intent struct {
	Action string   `cbor:"1,keyasint"`
	Fields [][]byte `cbor:"2,keyasint"`
}

// NewIntent builds an intent for action.
func NewIntent(action string, fields ...[]byte) Intent {
	return Intent{Action: action, Fields: fields}
}

// Bytes returns the canonical signing bytes of the intent.
func (i Intent) Bytes() ([]byte, error) {
	body, err := codec.Marshal(i)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(intentDomain)+len(body))
	out = append(out, intentDomain...)
	return append(out, body...), nil
}
