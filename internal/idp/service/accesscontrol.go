package service

import (
	"context"
	"errors"
	"slices"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
)

// ACLEvaluator applies a client's access-control list. Rules run left to
// right with deny overriding allow. A client without a resolvable ACL is a
// server error, never "allow all".
type ACLEvaluator struct {
	Store store.Store
}

// ResolveACL loads a client's ACL, mapping a missing record onto ErrInternal
// per the never-allow-all rule.
func (e *ACLEvaluator) ResolveACL(ctx context.Context, aclID string) (domain.ACL, error) {
	acl, err := e.Store.ACLs().GetACLByID(ctx, aclID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ACL{}, ErrInternal
		}
		return domain.ACL{}, err
	}
	return acl, nil
}

// CheckPrincipal decides whether the user may use the client at all.
// A matching deny rule refuses. When allow rules exist, one must match the
// user or a group (default deny); with no allow rules every user not denied
// is permitted.
func (e *ACLEvaluator) CheckPrincipal(acl domain.ACL, user domain.User) bool {
	hasAllow := false
	allowed := false

	for _, rule := range acl.Rules {
		if !ruleMatchesUser(rule, user) {
			if rule.Effect == domain.EffectAllow && (rule.Kind == domain.RulePrincipal || rule.Kind == domain.RuleGroup) {
				hasAllow = true
			}
			continue
		}
		switch rule.Effect {
		case domain.EffectDeny:
			return false
		case domain.EffectAllow:
			hasAllow = true
			allowed = true
		}
	}

	if hasAllow {
		return allowed
	}
	return true
}

func ruleMatchesUser(rule domain.Rule, user domain.User) bool {
	switch rule.Kind {
	case domain.RulePrincipal:
		return rule.Value == user.ID
	case domain.RuleGroup:
		return slices.Contains(user.Groups, rule.Value)
	default:
		return false
	}
}

// CheckScopes returns the subset of permission names the ACL refuses. An
// empty result means all requested scopes pass. Lookup failures surface as
// errors so callers can tell "denied" from "could not evaluate".
func (e *ACLEvaluator) CheckScopes(ctx context.Context, acl domain.ACL, permissions []string) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var denied []string
	for _, name := range permissions {
		if !scopeAllowed(acl, name) {
			denied = append(denied, name)
		}
	}
	return denied, nil
}

func scopeAllowed(acl domain.ACL, name string) bool {
	hasAllow := false
	allowed := false

	for _, rule := range acl.Rules {
		if rule.Kind != domain.RuleScope {
			continue
		}
		if rule.Effect == domain.EffectAllow {
			hasAllow = true
		}
		if rule.Value != name {
			continue
		}
		switch rule.Effect {
		case domain.EffectDeny:
			return false
		case domain.EffectAllow:
			allowed = true
		}
	}

	if hasAllow {
		return allowed
	}
	return true
}
