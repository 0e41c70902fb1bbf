package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type factoryA struct{}
type factoryB struct{}
type factoryC struct{}

func TestRegistry(t *testing.T) {
	var r Registry[any]
	r.Register(10, factoryA{})
	r.Register(50, &factoryB{})
	r.Register(10, factoryC{})

	require.Equal(t, []any{&factoryB{}, factoryA{}, factoryC{}}, r.Factories())
	require.Panics(t, func() { r.Register(1, factoryB{}) })
}

func TestRegistryEmpty(t *testing.T) {
	var r Registry[PlayerPCMFactory]
	require.Empty(t, r.Factories())
}
