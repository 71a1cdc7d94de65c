// Package ui provides colorized console output for notable dispatch events:
// cache hits, credential failover, vendor fallback and sweep runs. Structured
// logs carry the full detail; these lines are for the operator watching the
// terminal.
package ui

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/promptbridge/promptbridge/internal/domain"
	"github.com/promptbridge/promptbridge/internal/security"
)

var (
	successBadge = color.New(color.BgGreen, color.FgBlack, color.Bold)
	warningBadge = color.New(color.FgYellow, color.Bold)
	errorBadge   = color.New(color.BgRed, color.FgWhite, color.Bold)
	cacheBadge   = color.New(color.BgCyan, color.FgBlack, color.Bold)

	successText = color.New(color.FgGreen)
	warningText = color.New(color.FgYellow)
	errorText   = color.New(color.FgRed)
	mutedText   = color.New(color.FgHiBlack)
	accentText  = color.New(color.FgMagenta, color.Bold)
)

// PrintBanner prints the startup banner with the listen address.
func PrintBanner(version, addr string) {
	accentText.Printf("\npromptbridge %s\n", version)
	mutedText.Printf("listening on http://%s\n\n", addr)
}

// PrintDispatchOK prints a successful dispatch line.
// Format: [ OK ] provider/model (N tokens)
func PrintDispatchOK(provider domain.ProviderType, model string, totalTokens int) {
	successBadge.Print(" OK ")
	fmt.Print(" ")
	successText.Printf("%s/%s", provider, model)
	mutedText.Printf(" (%d tokens)\n", totalTokens)
}

// PrintCacheHit prints a cache-hit line with the shortened fingerprint.
func PrintCacheHit(key string, contextID int) {
	cacheBadge.Print(" CACHE ")
	fmt.Print(" ")
	mutedText.Printf("hit %s (context %d)\n", key, contextID)
}

// PrintFailover prints a credential rotation within one vendor.
func PrintFailover(provider domain.ProviderType, fromIndex, toIndex int) {
	warningBadge.Print("[FAILOVER]")
	fmt.Print(" ")
	warningText.Printf("%s key #%d -> #%d\n", provider, fromIndex, toIndex)
}

// PrintVendorFallback prints a cross-vendor switch.
func PrintVendorFallback(from, to domain.ProviderType) {
	warningBadge.Print("[FALLBACK]")
	fmt.Print(" ")
	warningText.Printf("%s -> %s\n", from, to)
}

// PrintDispatchFailed prints a failed dispatch line with a masked key.
func PrintDispatchFailed(provider domain.ProviderType, key, reason string) {
	errorBadge.Print(" FAIL ")
	fmt.Print(" ")
	errorText.Printf("%s %s", provider, security.MaskKey(key))
	mutedText.Printf(" (%s)\n", reason)
}

// PrintSweep prints the outcome of a cache sweep.
func PrintSweep(removed int) {
	cacheBadge.Print(" SWEEP ")
	fmt.Print(" ")
	mutedText.Printf("removed %d expired entries\n", removed)
}
