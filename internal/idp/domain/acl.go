package domain

import "time"

// RuleEffect says whether a matching rule grants or refuses access.
type RuleEffect string

const (
	EffectAllow RuleEffect = "allow"
	EffectDeny  RuleEffect = "deny"
)

// RuleKind says what a rule matches against.
type RuleKind string

const (
	RulePrincipal RuleKind = "principal"
	RuleGroup     RuleKind = "group"
	RuleScope     RuleKind = "scope"
)

// Rule is one entry of an access-control list.
type Rule struct {
	Effect RuleEffect `json:"effect"`
	Kind   RuleKind   `json:"kind"`
	Value  string     `json:"value"`
}

// ACL restricts which users, groups, and scopes a client may use. Rules are
// evaluated left to right with deny overriding allow. A client without a
// resolvable ACL is a server error, never "allow all".
type ACL struct {
	ID        string
	Rules     []Rule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission is a named capability clients request as a scope.
type Permission struct {
	Name      string
	CreatedAt time.Time
}
