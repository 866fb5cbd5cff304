package billing

import (
	"fmt"
	"strings"
)

// Provider identifies the portal an invoice comes from.
type Provider string

const (
	// ProviderEndesa is the retail energy provider.
	ProviderEndesa Provider = "endesa"
	// ProviderEnel is the distribution operator.
	ProviderEnel Provider = "enel"
)

// Providers lists every supported provider.
func Providers() []Provider {
	return []Provider{ProviderEndesa, ProviderEnel}
}

// ParseProvider normalizes a provider name.
func ParseProvider(value string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(value))) {
	case ProviderEndesa:
		return ProviderEndesa, nil
	case ProviderEnel:
		return ProviderEnel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, value)
	}
}

// Label is the upper-case provider name used in file names.
func (p Provider) Label() string {
	return strings.ToUpper(string(p))
}
