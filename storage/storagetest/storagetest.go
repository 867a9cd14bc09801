// Package storagetest checks that a storage.Store behaves like the others.
package storagetest

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/jvahrenhold/tpie/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store from newStore for each case.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("write and read back", func(t *testing.T) {
		s := newStore(t)
		tests := []struct {
			name    string
			content string
		}{
			{name: "empty", content: ""},
			{name: "small", content: "hello world"},
			{name: "large", content: strings.Repeat("0123456789abcdef", 10000)},
		}
		for _, tt := range tests {
			write(t, s, tt.name, tt.content)
			assert.Equal(t, tt.content, read(t, s, tt.name), tt.name)
		}
	})

	t.Run("create replaces", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "blob", strings.Repeat("x", 5000))
		write(t, s, "blob", "short")
		assert.Equal(t, "short", read(t, s, "blob"))
	})

	t.Run("list is sorted", func(t *testing.T) {
		s := newStore(t)
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		for _, name := range []string{"run-c", "run-a", "run-b"} {
			write(t, s, name, name)
		}
		names, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-a", "run-b", "run-c"}, names)
	})

	t.Run("invisible until closed", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "done", "1")

		w, err := s.Create(ctx, "pending")
		require.NoError(t, err)
		_, err = io.WriteString(w, strings.Repeat("p", 5000))
		require.NoError(t, err)

		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"done"}, names)
		_, err = s.Open(ctx, "pending")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
		names, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"done", "pending"}, names)
		assert.Equal(t, strings.Repeat("p", 5000), read(t, s, "pending"))
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		write(t, s, "a", "1")
		write(t, s, "b", "2")

		require.NoError(t, s.Remove(ctx, "a"))
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, names)
		assert.Equal(t, "2", read(t, s, "b"))

		assert.ErrorIs(t, s.Remove(ctx, "a"), storage.ErrNotFound)
	})

	t.Run("missing blob", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Open(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invalid names", func(t *testing.T) {
		s := newStore(t)
		for _, name := range []string{"", "..", "a/b"} {
			_, err := s.Create(ctx, name)
			assert.ErrorIs(t, err, storage.ErrInvalidName, name)
		}
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := newStore(t)
		names := []string{"w0", "w1", "w2", "w3", "w4", "w5", "w6", "w7"}

		var wg sync.WaitGroup
		for _, name := range names {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w, err := s.Create(ctx, name)
				if !assert.NoError(t, err) {
					return
				}
				_, err = io.WriteString(w, strings.Repeat(name, 1000))
				assert.NoError(t, err)
				assert.NoError(t, w.Close())
			}()
		}
		wg.Wait()

		for _, name := range names {
			assert.Equal(t, strings.Repeat(name, 1000), read(t, s, name))
		}
	})
}

func write(t *testing.T, s storage.Store, name, content string) {
	t.Helper()
	w, err := s.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func read(t *testing.T, s storage.Store, name string) string {
	t.Helper()
	r, err := s.Open(context.Background(), name)
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return string(b)
}
