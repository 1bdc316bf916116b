package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatusSnapshot(t *testing.T) {
	t.Run("trims trailing newlines", func(t *testing.T) {
		a := NewStatusSnapshot(" M main.go\n")
		b := NewStatusSnapshot(" M main.go\r\n")
		c := NewStatusSnapshot(" M main.go")

		assert.Equal(t, " M main.go", a.Text)
		assert.Equal(t, a.Hash, b.Hash)
		assert.Equal(t, a.Hash, c.Hash)
	})

	t.Run("different text hashes differently", func(t *testing.T) {
		a := NewStatusSnapshot(" M main.go")
		b := NewStatusSnapshot(" M other.go")

		assert.NotEqual(t, a.Hash, b.Hash)
	})

	t.Run("empty and whitespace are empty", func(t *testing.T) {
		assert.True(t, NewStatusSnapshot("").IsEmpty())
		assert.True(t, NewStatusSnapshot("\n\n").IsEmpty())
		assert.False(t, NewStatusSnapshot("?? new.txt").IsEmpty())
	})

	t.Run("empty input always hashes identically", func(t *testing.T) {
		assert.Equal(t, NewStatusSnapshot("").Hash, NewStatusSnapshot("\n").Hash)
	})
}

func TestNewFileListSnapshot(t *testing.T) {
	t.Run("equal lists hash equally", func(t *testing.T) {
		a := NewFileListSnapshot([]string{"a.go", "b.go"})
		b := NewFileListSnapshot([]string{"a.go", "b.go"})

		assert.Equal(t, a.Hash, b.Hash)
	})

	t.Run("order matters", func(t *testing.T) {
		a := NewFileListSnapshot([]string{"a.go", "b.go"})
		b := NewFileListSnapshot([]string{"b.go", "a.go"})

		assert.NotEqual(t, a.Hash, b.Hash)
	})

	t.Run("separator prevents boundary collisions", func(t *testing.T) {
		a := NewFileListSnapshot([]string{"ab", "c"})
		b := NewFileListSnapshot([]string{"a", "bc"})

		assert.NotEqual(t, a.Hash, b.Hash)
	})
}
