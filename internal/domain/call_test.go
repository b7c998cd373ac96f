package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_CallKey_Is_Order_Independent(t *testing.T) {
	req := require.New(t)

	req.Equal(NewCallKey("alice", "bob"), NewCallKey("bob", "alice"))
	req.NotEqual(NewCallKey("alice", "bob"), NewCallKey("alice", "carol"))
}

func Test_CallKey_Pair_Helpers(t *testing.T) {
	req := require.New(t)

	key := NewCallKey("7001", "42")
	req.True(key.Involves("42"))
	req.True(key.Involves("7001"))
	req.False(key.Involves("9"))

	peer, ok := key.Other("42")
	req.True(ok)
	req.Equal(UserID("7001"), peer)

	peer, ok = key.Other("7001")
	req.True(ok)
	req.Equal(UserID("42"), peer)

	_, ok = key.Other("9")
	req.False(ok)
}
