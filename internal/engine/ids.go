package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// GeneratedIDPrefix marks trigger ids minted by When, Once and On.
// Callers of AddTrigger may not use it.
const GeneratedIDPrefix = "__auto:"

// IDGenerator produces the unique suffix of generated trigger ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 suffixes, so generated
// ids sort by creation time in logs and journals.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns "1", "2", "3", ... and is meant for tests and
// scenario runs that compare generated ids against golden output.
//
// Thread-safety: SequenceGenerator is safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu   sync.Mutex
	next int
}

// NewSequenceGenerator creates a generator whose first id is "1".
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

// Generate returns the next number in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++
	return fmt.Sprintf("%d", g.next)
}

// IsGeneratedID reports whether id carries the generated-id prefix.
func IsGeneratedID(id string) bool {
	return strings.HasPrefix(id, GeneratedIDPrefix)
}

func generatedID(gen IDGenerator, kind string) string {
	return GeneratedIDPrefix + kind + ":" + gen.Generate()
}

// TriggerLabel returns id with the unique suffix of a generated id dropped,
// so "__auto:when:0192..." becomes "__auto:when". Other ids are returned
// as is. Use it wherever the id set must stay bounded, such as metric labels.
func TriggerLabel(id string) string {
	if !IsGeneratedID(id) {
		return id
	}
	rest := strings.TrimPrefix(id, GeneratedIDPrefix)
	kind, _, _ := strings.Cut(rest, ":")
	return GeneratedIDPrefix + kind
}
