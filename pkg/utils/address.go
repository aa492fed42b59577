package utils

import (
	"net/mail"
	"regexp"
	"strings"
)

var angleAddrPattern = regexp.MustCompile(`<([^>]+)>`)

// ExtractAddress pulls the bare address out of a From header. Handles
// `Display Name <addr>` and bare addresses; anything else comes back as the
// trimmed raw string so the caller always has something to show.
func ExtractAddress(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(header); err == nil {
		return addr.Address
	}
	if m := angleAddrPattern.FindStringSubmatch(header); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.Contains(header, "@") {
		for _, part := range strings.Fields(header) {
			if strings.Contains(part, "@") {
				return strings.Trim(part, "<>\"'")
			}
		}
	}
	return header
}

// ExtractDisplayName pulls the display name out of a From header, empty when
// the header is a bare address.
func ExtractDisplayName(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(header); err == nil {
		return addr.Name
	}
	if idx := strings.Index(header, "<"); idx > 0 {
		return strings.Trim(strings.TrimSpace(header[:idx]), "\"'")
	}
	return ""
}

// ExtractDomain returns the lowercased domain of the address in a From
// header, empty when no address can be found.
func ExtractDomain(header string) string {
	addr := ExtractAddress(header)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}
