package mapstream

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Velocidex/c-aff4-sub000/aff4ctx"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/rdf"
	"github.com/Velocidex/c-aff4-sub000/resolver"
	"github.com/Velocidex/c-aff4-sub000/zip64"
)

func TestMapFlushAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.aff4")
	volURN := rdf.NewURN("aff4://test-volume")
	v, err := zip64.CreateVolume(path, volURN)
	require.NoError(t, err)

	res := resolver.New()
	actx := aff4ctx.New()
	mapURN := rdf.NewURN("aff4://test-map")
	targetURN := rdf.NewURN("aff4://target-a")

	target := &fakeTarget{data: []byte("0123456789ABCDEF")}

	m := New(mapURN, res, actx)
	tid := m.AddTarget(targetURN, target, false)
	require.NoError(t, m.AddRange(0, 0, 8, tid))
	require.NoError(t, m.AddRange(100, 8, 8, tid))

	require.NoError(t, m.Flush(v))
	require.NoError(t, v.Close())

	sizeVal, err := resolver.GetAs[rdf.XSDInteger](res, mapURN, resolver.PredSize)
	require.NoError(t, err)
	assert.Equal(t, int64(108), int64(sizeVal))

	reopened, err := zip64.OpenVolume(path, volURN, false)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.HasMember(rdf.MapMemberPath(mapURN, "map")))
	assert.True(t, reopened.HasMember(rdf.MapMemberPath(mapURN, "idx")))

	loaded, err := Load(mapURN, res, actx, reopened, func(urn rdf.URN) (aff4io.Stream, error) {
		require.Equal(t, targetURN, urn)
		return target, nil
	})
	require.NoError(t, err)

	loadedSize, err := loaded.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(108), loadedSize)
	assert.Equal(t, m.Ranges(), loaded.Ranges())
}
