package graph

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const maxDatabaseNameLen = 63

var dbNameDisallowed = regexp.MustCompile(`[^a-z0-9.-]`)

// DeriveDatabaseName builds the target database name for a domain. The
// result is a pure function of the domain id and name, so retries and
// crash re-runs always aim at the same database: first 8 hex chars of the
// id, a hyphen, then the domain name, sanitized to Neo4j's rules
// (lowercase, [a-z0-9.-], must start with a letter, 63 chars max).
func DeriveDatabaseName(domainID uuid.UUID, domainName string) string {
	idPart := strings.ReplaceAll(domainID.String(), "-", "")[:8]
	return sanitizeDatabaseName(idPart + "-" + domainName)
}

func sanitizeDatabaseName(s string) string {
	s = strings.ToLower(s)
	s = dbNameDisallowed.ReplaceAllString(s, "-")
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		s = "db-" + s
	}
	if len(s) > maxDatabaseNameLen {
		s = s[:maxDatabaseNameLen]
	}
	return s
}
