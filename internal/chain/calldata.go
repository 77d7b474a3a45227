package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Method is a parsed function signature such as "buy(uint256,uint256)".
type Method struct {
	Name      string
	Signature string
	Inputs    abi.Arguments
}

// ParseMethod parses a canonical function signature. Only flat argument lists
// are supported; tuples are not.
func ParseMethod(signature string) (Method, error) {
	signature = strings.ReplaceAll(signature, " ", "")
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return Method{}, fmt.Errorf("malformed function signature %q", signature)
	}

	m := Method{Name: signature[:open], Signature: signature}
	list := signature[open+1 : len(signature)-1]
	if list == "" {
		return m, nil
	}
	for i, typeName := range strings.Split(list, ",") {
		typ, err := abi.NewType(typeName, "", nil)
		if err != nil {
			return Method{}, fmt.Errorf("argument %d of %q: %w", i, signature, err)
		}
		m.Inputs = append(m.Inputs, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
	}
	return m, nil
}

// Selector returns the 4-byte function selector.
func (m Method) Selector() []byte {
	return crypto.Keccak256([]byte(m.Signature))[:4]
}

// Encode ABI-encodes args and prefixes the selector.
func (m Method) Encode(args ...interface{}) ([]byte, error) {
	packed, err := m.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack arguments for %s: %w", m.Name, err)
	}
	return append(m.Selector(), packed...), nil
}

// EncodeCall is a shorthand for ParseMethod followed by Encode.
func EncodeCall(signature string, args ...interface{}) ([]byte, error) {
	m, err := ParseMethod(signature)
	if err != nil {
		return nil, err
	}
	return m.Encode(args...)
}
