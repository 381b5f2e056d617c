package solidity

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// Signature renders the canonical ABI signature, e.g. transfer(address,uint256).
func Signature(fn model.FunctionModel, c *model.ContractState) string {
	types := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		types[i] = canonicalType(p.Type, c)
	}
	return fn.Name + "(" + strings.Join(types, ",") + ")"
}

// Selector is the first four bytes of keccak256(Signature), hex encoded.
func Selector(fn model.FunctionModel, c *model.ContractState) string {
	return hexutil.Encode(crypto.Keccak256([]byte(Signature(fn, c)))[:4])
}

func canonicalType(typ string, c *model.ContractState) string {
	typ = strings.TrimSpace(typ)
	if i := strings.Index(typ, "["); i >= 0 {
		return canonicalType(typ[:i], c) + strings.ReplaceAll(typ[i:], " ", "")
	}
	switch typ {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	case "byte":
		return "bytes1"
	case "address payable":
		return "address"
	case "fixed":
		return "fixed128x18"
	case "ufixed":
		return "ufixed128x18"
	}
	if strings.HasPrefix(typ, "function") {
		return "function"
	}
	if IsElementaryType(typ) {
		return typ
	}
	if i := strings.LastIndex(typ, "."); i >= 0 {
		typ = typ[i+1:]
	}
	if c != nil {
		for _, e := range c.EnumNames {
			if e == typ {
				return "uint8"
			}
		}
		for _, s := range c.StructNames {
			if s == typ {
				// tuple encoding needs the member list, which is not modeled
				return typ
			}
		}
	}
	return "address"
}
