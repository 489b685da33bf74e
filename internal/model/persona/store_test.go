package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFallsBackToDefault(t *testing.T) {
	store := NewMemoryStore(Seed())

	assert.Equal(t, "タフト", Resolve(store, "missing").Name)
	assert.Equal(t, DefaultID, Resolve(store, DefaultID).ID)
}

func TestResolveEmptyStore(t *testing.T) {
	store := NewMemoryStore(nil)
	assert.Equal(t, DefaultID, Resolve(store, "anything").ID)
}

func TestListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	items := store.List()
	items[0].Name = "changed"

	p, ok := store.FindByID(DefaultID)
	assert.True(t, ok)
	assert.Equal(t, "タフト", p.Name)
}
