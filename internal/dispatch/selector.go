package dispatch

import (
	"github.com/promptbridge/promptbridge/internal/domain"
)

// resolvedCredential is the outcome of credential selection: the secret to
// send, the model it implies, and the addressing metadata for annotations.
type resolvedCredential struct {
	secret string
	model  string
	label  string
	index  int // -1 when an explicit secret bypassed the configured list
}

// resolveCredential selects the credential for a vendor. Precedence,
// highest first:
//
//  1. An explicit secret in the options: used verbatim, no list lookup.
//  2. An explicit index: must exist with a non-empty secret, else resolution
//     fails outright (no silent fallthrough).
//  3. The globally configured default index, only when the vendor being
//     resolved is the configured default vendor; abandoned (not failed) if
//     that credential is missing or disabled.
//  4. The first enabled credential in list order.
//
// An absent result is a normal outcome, distinguishable from transport
// failures so the dispatcher can short-circuit without network activity.
func (d *Dispatcher) resolveCredential(provider domain.ProviderType, o Options) (resolvedCredential, bool) {
	settings := d.cfg.ProviderSettingsFor(provider)

	if o.APIKey != "" {
		return resolvedCredential{
			secret: o.APIKey,
			model:  firstNonEmpty(o.Model, settings.Model),
			index:  -1,
		}, true
	}

	creds := settings.Credentials

	if o.KeyIndex != nil {
		i := *o.KeyIndex
		if i < 0 || i >= len(creds) || creds[i].Secret == "" {
			return resolvedCredential{}, false
		}
		c := creds[i]
		return resolvedCredential{
			secret: c.Secret,
			model:  firstNonEmpty(o.Model, c.Model, settings.Model),
			label:  c.Label,
			index:  i,
		}, true
	}

	if d.cfg.DefaultProvider() == provider {
		i := d.cfg.Defaults.KeyIndex
		if i >= 0 && i < len(creds) && creds[i].Usable() {
			c := creds[i]
			return resolvedCredential{
				secret: c.Secret,
				model:  firstNonEmpty(o.Model, c.Model, settings.Model),
				label:  c.Label,
				index:  i,
			}, true
		}
		// Default index unusable: fall through to first-enabled.
	}

	for i, c := range creds {
		if c.Usable() {
			return resolvedCredential{
				secret: c.Secret,
				model:  firstNonEmpty(o.Model, c.Model, settings.Model),
				label:  c.Label,
				index:  i,
			}, true
		}
	}

	return resolvedCredential{}, false
}

// nextUsable returns the index of the first usable credential at or after
// from, or -1 when none remain.
func nextUsable(creds []domain.Credential, from int) int {
	for i := from; i < len(creds); i++ {
		if creds[i].Usable() {
			return i
		}
	}
	return -1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
