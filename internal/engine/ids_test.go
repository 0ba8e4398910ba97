package engine

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	gen := UUIDv7Generator{}
	token := gen.Generate()

	parsed, err := uuid.Parse(token)
	require.NoError(t, err, "token should be valid UUID")
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, token)
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	tokens := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens <- gen.Generate()
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for token := range tokens {
		assert.False(t, seen[token], "token %s generated twice", token)
		seen[token] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator()

	assert.Equal(t, "1", gen.Generate())
	assert.Equal(t, "2", gen.Generate())
	assert.Equal(t, "3", gen.Generate())
}

func TestGeneratedID(t *testing.T) {
	id := generatedID(NewSequenceGenerator(), "on")

	assert.Equal(t, "__auto:on:1", id)
	assert.True(t, IsGeneratedID(id))
	assert.False(t, IsGeneratedID("counter"))
	assert.True(t, strings.HasPrefix(generatedID(UUIDv7Generator{}, "when"), "__auto:when:"))
}

func TestTriggerLabel(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"__auto:when:0192f5a4-0000-7000-8000-000000000001", "__auto:when"},
		{"__auto:on:7", "__auto:on"},
		{"__auto:once", "__auto:once"},
		{"named", "named"},
		{"when:1", "when:1"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, TriggerLabel(tt.id))
		})
	}
}
