package depmap

import (
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
)

// ExtractVariableTypes maps every state variable declared in code to its
// declared type. Unparseable code yields an empty map.
func ExtractVariableTypes(code string) map[string]string {
	out := map[string]string{}
	all, err := solidity.ExtractAll(model.SourceUnit{Name: "<code>", Text: code})
	if err != nil {
		return out
	}
	for _, c := range all {
		for _, v := range c.StateVariables {
			if _, dup := out[v.Name]; !dup {
				out[v.Name] = v.Type
			}
		}
	}
	return out
}

// FindContractByType resolves a declared type against the batch: exact name
// first, then case-insensitive. Mapping values, arrays and qualified names
// are reduced to the referenced type. Returns nil when absent.
func FindContractByType(typeName string, all []model.ContractState) *model.ContractState {
	t := normalizeType(typeName)
	if t == "" || solidity.IsElementaryType(t) {
		return nil
	}
	for i := range all {
		if all[i].Name == t {
			return &all[i]
		}
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, t) {
			return &all[i]
		}
	}
	return nil
}

// FindContractByName is the naming-convention fallback: a variable `token`,
// `_token` or `s_token` matches a contract named Token or IToken.
func FindContractByName(varName string, all []model.ContractState) *model.ContractState {
	name := stripVarPrefix(varName)
	if name == "" {
		return nil
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, name) {
			return &all[i]
		}
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, "I"+name) {
			return &all[i]
		}
	}
	return nil
}

func normalizeType(typeName string) string {
	t := strings.TrimSpace(typeName)
	t = strings.TrimPrefix(t, "contract ")
	return solidity.ValueType(t)
}

func stripVarPrefix(name string) string {
	for _, p := range []string{"s_", "i_", "_"} {
		if rest, ok := strings.CutPrefix(name, p); ok && rest != "" {
			name = rest
			break
		}
	}
	return strings.TrimLeft(name, "_")
}
