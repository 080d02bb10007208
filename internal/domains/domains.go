package domains

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a recipient address belongs to a domain the
// intake accepts mail for
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new accepted-domain checker. An empty list accepts
// every domain.
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			normalized[domain] = struct{}{}
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized accepted domain checker", zap.Int("domains", len(normalized)))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsAccepted checks if the address's domain is accepted
func (c *Checker) IsAccepted(address string) bool {
	if len(c.domains) == 0 {
		return true
	}

	domain, ok := Domain(address)
	if !ok {
		return false
	}

	_, accepted := c.domains[domain]
	if !accepted && c.logger != nil {
		c.logger.Debug("Domain is not accepted",
			zap.String("domain", domain),
			zap.String("email", address))
	}
	return accepted
}

// Domain extracts the lowercased domain of an address
func Domain(address string) (string, bool) {
	addr, err := mail.ParseAddress(address)
	if err != nil {
		// envelope addresses arrive without a display name or brackets
		addr = &mail.Address{Address: strings.Trim(strings.TrimSpace(address), "<>")}
	}

	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 || at == len(addr.Address)-1 {
		return "", false
	}
	return strings.ToLower(addr.Address[at+1:]), true
}
