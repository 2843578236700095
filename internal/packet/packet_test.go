// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reactived/internal/match"
)

type stubPacket struct {
	loaded match.Field
}

func (p stubPacket) Load(m match.Mask) (match.Field, error) { return p.loaded.As(m.Type) }
func (p stubPacket) Test(need match.Field) (bool, error)    { return DefaultTest(p, need) }
func (p stubPacket) Modify(match.Field) error               { return nil }

func TestDefaultTestMatchesOnEqualValue(t *testing.T) {
	v, err := match.NewValue(match.IPProto, 6)
	require.NoError(t, err)
	p := stubPacket{loaded: match.FromValue(v)}

	ok, err := p.Test(match.FromValue(v))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDefaultTestFailsOnMismatchedValue(t *testing.T) {
	loaded, err := match.NewValue(match.IPProto, 6)
	require.NoError(t, err)
	p := stubPacket{loaded: match.FromValue(loaded)}

	want, err := match.NewValue(match.IPProto, 17)
	require.NoError(t, err)

	ok, err := p.Test(match.FromValue(want))
	require.NoError(t, err)
	assert.False(t, ok)
}
