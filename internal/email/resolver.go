package email

import (
	"fmt"
	"net"
	"strings"
	"time"
)

const defaultIMAPPort = 993

// Common IMAP servers for popular email providers
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com",
	"googlemail.com": "imap.gmail.com",
	"outlook.com":    "outlook.office365.com",
	"hotmail.com":    "outlook.office365.com",
	"live.com":       "outlook.office365.com",
	"msn.com":        "outlook.office365.com",
	"yahoo.com":      "imap.mail.yahoo.com",
	"yahoo.com.br":   "imap.mail.yahoo.com",
	"icloud.com":     "imap.mail.me.com",
	"me.com":         "imap.mail.me.com",
	"aol.com":        "imap.aol.com",
	"zoho.com":       "imap.zoho.com",
	"fastmail.com":   "imap.fastmail.com",
	"uol.com.br":     "imap.uol.com.br",
	"bol.com.br":     "imap.bol.com.br",
	"terra.com.br":   "imap.terra.com.br",
	"ig.com.br":      "imap.ig.com.br",
	"gmx.com":        "imap.gmx.com",
}

// reachable reports whether host:port accepts TCP connections
var reachable = func(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprint(port)), 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ResolveIMAPHost determines the IMAP host for an email address. Used when a
// bootstrap account is configured without IMAP_HOST.
func ResolveIMAPHost(email string) (string, error) {
	domain := GetDomainFromEmail(email)
	if domain == "" {
		return "", fmt.Errorf("invalid email format")
	}

	// Check known providers first
	if host, ok := knownIMAPServers[domain]; ok {
		return host, nil
	}

	// Try common IMAP server patterns
	for _, host := range []string{"imap." + domain, "mail." + domain, domain} {
		if reachable(host, defaultIMAPPort) {
			return host, nil
		}
	}

	// Try to resolve via MX records
	if host, err := resolveViaMX(domain); err == nil {
		return host, nil
	}

	return "imap." + domain, nil
}

// resolveViaMX tries to determine IMAP server from MX records
func resolveViaMX(domain string) (string, error) {
	mxRecords, err := net.LookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		return "", fmt.Errorf("no MX records found")
	}

	// e.g., mx.example.com -> imap.example.com
	mxHost := strings.TrimSuffix(mxRecords[0].Host, ".")
	parts := strings.SplitN(mxHost, ".", 2)
	if len(parts) == 2 {
		for _, host := range []string{"imap." + parts[1], "mail." + parts[1]} {
			if reachable(host, defaultIMAPPort) {
				return host, nil
			}
		}
	}

	return "", fmt.Errorf("could not determine IMAP server")
}

// GetDomainFromEmail extracts domain from email address
func GetDomainFromEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}
