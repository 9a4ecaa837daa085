package timezone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNowUsesLocation(t *testing.T) {
	now := Now()
	require.Equal(t, Location, now.Location())
}
