package classify

import (
	"regexp"
	"strings"
)

const UnknownOperation = "unknown_operation"

// ModuleRule maps an operation-name substring to a module tag. Rules are
// evaluated in order, first match wins.
type ModuleRule struct {
	Keyword string
	Module  string
}

// Default keyword table. Order matters: more specific keywords come first.
func DefaultModuleRules() []ModuleRule {
	return []ModuleRule{
		{Keyword: "realestate", Module: "RealEstate"},
		{Keyword: "real_estate", Module: "RealEstate"},
		{Keyword: "propert", Module: "RealEstate"},
		{Keyword: "organi", Module: "OrganizationManagement"},
		{Keyword: "role", Module: "AccessControl"},
		{Keyword: "permission", Module: "AccessControl"},
		{Keyword: "login", Module: "Authentication"},
		{Keyword: "logout", Module: "Authentication"},
		{Keyword: "token", Module: "Authentication"},
		{Keyword: "auth", Module: "Authentication"},
		{Keyword: "user", Module: "UserManagement"},
		{Keyword: "security", Module: "Security"},
		{Keyword: "log", Module: "Security"},
	}
}

var (
	namedOperationRe = regexp.MustCompile(`(?s)\b(?:query|mutation|subscription)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	firstFieldRe     = regexp.MustCompile(`(?s)\{\s*([A-Za-z_][A-Za-z0-9_]*)`)
)

// Operation extracts the operation name and module tag from a raw GraphQL
// query. Resolution order: explicit operation name, named operation in the
// query text, first top-level field, then UnknownOperation.
func Operation(query, explicitName string, rules []ModuleRule) (string, string) {
	op := resolveOperation(query, explicitName)
	return op, resolveModule(op, rules)
}

func resolveOperation(query, explicitName string) string {
	if name := strings.TrimSpace(explicitName); name != "" {
		return name
	}

	if m := namedOperationRe.FindStringSubmatch(query); m != nil {
		return m[1]
	}

	if m := firstFieldRe.FindStringSubmatch(query); m != nil {
		return m[1]
	}

	return UnknownOperation
}

func resolveModule(operation string, rules []ModuleRule) string {
	lower := strings.ToLower(operation)
	for _, rule := range rules {
		if strings.Contains(lower, rule.Keyword) {
			return rule.Module
		}
	}

	return "Unknown"
}

// Introspection machinery that the pipeline never logs.
var excludedOperations = map[string]struct{}{
	"IntrospectionQuery": {},
	"__schema":           {},
	"__type":             {},
	"__typename":         {},
}

// Excluded reports whether the resolved operation must be skipped by the
// logging pipeline.
func Excluded(operation string) bool {
	_, ok := excludedOperations[operation]
	return ok
}
