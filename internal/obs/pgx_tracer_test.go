package obs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLOperation(t *testing.T) {
	require.Equal(t, "INSERT", sqlOperation("\n insert into proposal_quotes values ($1)"))
	require.Equal(t, "query", sqlOperation("   "))
}

func TestTruncateSQL(t *testing.T) {
	long := strings.Repeat("x", 400)
	got := truncateSQL(long)
	require.Len(t, got, 303)
	require.True(t, strings.HasSuffix(got, "..."))
}
