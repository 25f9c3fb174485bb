package acl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsUnknownScope(t *testing.T) {
	r := NewRegistry(testScopes, newStubFields())
	require.NoError(t, r.Register("Widget", Definition{}))

	err := r.Freeze()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestRegistryFrozen(t *testing.T) {
	r := NewRegistry(testScopes, newStubFields())

	_, err := r.Resolve("Lead")
	assert.True(t, errors.Is(err, ErrConfiguration))

	require.NoError(t, r.Register("Lead", Definition{}))
	assert.Error(t, r.Register("Lead", Definition{}))
	require.NoError(t, r.Freeze())
	assert.Error(t, r.Register("Case", Definition{}))

	res, err := r.Resolve("Lead")
	require.NoError(t, err)
	assert.IsType(t, &DefaultAccessChecker{}, res.Access)
	assert.NotNil(t, res.Assignment)
	assert.Len(t, r.Scopes(), len(testScopes))
}

func TestRegistryNilFactory(t *testing.T) {
	r := NewRegistry(testScopes, newStubFields())
	require.NoError(t, r.Register("Lead", Definition{
		Access: func(Defaults) any { return nil },
	}))

	assert.True(t, errors.Is(r.Freeze(), ErrConfiguration))
}

func TestRegistryRebuild(t *testing.T) {
	catalog := stubCatalog{"Lead"}
	r := NewRegistry(catalog, newStubFields())
	require.NoError(t, r.Freeze())

	_, err := r.Resolve("Case")
	require.Error(t, err)

	r.catalog = stubCatalog{"Lead", "Case"}
	require.NoError(t, r.Rebuild())

	_, err = r.Resolve("Case")
	assert.NoError(t, err)
}
