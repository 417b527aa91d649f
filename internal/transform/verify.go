package transform

import (
	"fmt"
	"strings"
)

// VerificationPolicy decides what happens to a destination type that cannot
// be checked against the destination's published type list.
type VerificationPolicy string

const (
	// PolicyAssumeSupported lets unverifiable types reach deployment.
	PolicyAssumeSupported VerificationPolicy = "assume_supported"
	// PolicyStrict deactivates activities whose types cannot be verified.
	PolicyStrict VerificationPolicy = "strict"
)

// ParsePolicy accepts the config spelling of a policy.
func ParsePolicy(s string) (VerificationPolicy, error) {
	switch VerificationPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAssumeSupported:
		return PolicyAssumeSupported, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown type verification policy %q (want %s or %s)", s, PolicyAssumeSupported, PolicyStrict)
}

// TypeVerifier reports whether the destination accepts a type name. An error
// means the answer is unknown.
type TypeVerifier interface {
	Supports(destinationType string) (bool, error)
}

// StaticVerifier checks types against a fixed, case-insensitive list.
type StaticVerifier map[string]struct{}

func NewStaticVerifier(types []string) StaticVerifier {
	v := make(StaticVerifier, len(types))
	for _, t := range types {
		v[strings.ToLower(t)] = struct{}{}
	}
	return v
}

func (v StaticVerifier) Supports(destinationType string) (bool, error) {
	_, ok := v[strings.ToLower(destinationType)]
	return ok, nil
}

// verifyTypes checks every destination type an activity uses. It returns
// false and deactivates act when the types must not be deployed.
func (t *Transformer) verifyTypes(sc *Scope, act map[string]any, types ...string) bool {
	for _, typ := range types {
		if typ == "" {
			continue
		}
		if t.verifier == nil {
			if t.policy == PolicyStrict {
				deactivate(act)
				sc.Warn("destination type %q cannot be verified (no type list configured); deactivated under strict policy", typ)
				return false
			}
			continue
		}
		ok, err := t.verifier.Supports(typ)
		switch {
		case err != nil && t.policy == PolicyStrict:
			deactivate(act)
			sc.Warn("destination type %q could not be verified: %v; deactivated under strict policy", typ, err)
			return false
		case err != nil:
			sc.Warn("destination type %q could not be verified: %v; assuming it is supported", typ, err)
		case !ok && t.policy == PolicyStrict:
			deactivate(act)
			sc.Warn("destination type %q is not supported by the destination; deactivated under strict policy", typ)
			return false
		case !ok:
			sc.Warn("destination type %q is not in the destination type list; deployment may fail", typ)
		}
	}
	return true
}
