package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	data := []byte("date,amount\n2024-01-01,5\n")
	require.NoError(t, m.Put(context.Background(), "2024/01/1-a.csv", data))
	data[0] = 'X'

	got, err := m.Get(context.Background(), "2024/01/1-a.csv")
	require.NoError(t, err)
	assert.Equal(t, "date,amount\n2024-01-01,5\n", string(got))
	assert.Equal(t, []string{"2024/01/1-a.csv"}, m.Keys())

	_, err = m.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestNoopDiscards(t *testing.T) {
	var s Store = Noop{}
	require.NoError(t, s.Put(context.Background(), "k", []byte("x")))
	_, err := s.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, isLocal("http://127.0.0.1:10000/devstoreaccount1"))
	assert.False(t, isLocal("https://acct.blob.core.windows.net/"))
}

func TestNewBlobStoreRequiresURL(t *testing.T) {
	_, err := NewBlobStore("", "statements")
	assert.Error(t, err)
}
