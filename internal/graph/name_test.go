package graph

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeriveDatabaseName_Deterministic(t *testing.T) {
	domainID := uuid.MustParse("a1b2c3d4-0000-4000-8000-000000000000")

	first := DeriveDatabaseName(domainID, "shop.example.com")
	second := DeriveDatabaseName(domainID, "shop.example.com")
	assert.Equal(t, first, second)
	assert.Equal(t, "a1b2c3d4-shop.example.com", first)
}

func TestDeriveDatabaseName_DistinctDomainsDistinctNames(t *testing.T) {
	name := "shop.example.com"
	a := DeriveDatabaseName(uuid.New(), name)
	b := DeriveDatabaseName(uuid.New(), name)
	assert.NotEqual(t, a, b, "same domain name under different ids must map to different databases")
}

func TestDeriveDatabaseName_SanitizesDisallowedCharacters(t *testing.T) {
	domainID := uuid.MustParse("a1b2c3d4-0000-4000-8000-000000000000")

	got := DeriveDatabaseName(domainID, "Sh op_Example!COM")
	assert.Equal(t, "a1b2c3d4-sh-op-example-com", got)
	assert.NotRegexp(t, `[^a-z0-9.-]`, got)
}

func TestDeriveDatabaseName_PrefixesWhenNotStartingWithLetter(t *testing.T) {
	domainID := uuid.MustParse("11223344-0000-4000-8000-000000000000")

	got := DeriveDatabaseName(domainID, "shop.example.com")
	assert.True(t, strings.HasPrefix(got, "db-"), "leading digit forces the db- prefix, got %q", got)
}

func TestDeriveDatabaseName_TruncatesTo63(t *testing.T) {
	long := strings.Repeat("a", 200) + ".example.com"
	got := DeriveDatabaseName(uuid.New(), long)
	assert.LessOrEqual(t, len(got), 63)
}
