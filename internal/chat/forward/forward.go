// Package forward builds the provenance chain carried by forwarded messages.
//
// A chain is a flat list of snapshots, newest hop first. It never references
// other rows, so a forward across container types keeps its history even
// though no relational link to the source exists.
package forward

import (
	"time"
	"unicode/utf8"
)

// SourceKind is the container type a hop came from.
type SourceKind string

const (
	SourceDM    SourceKind = "dm"
	SourceGroup SourceKind = "group"
)

const (
	SnippetLength   = 100
	DefaultMaxDepth = 50
)

type Entry struct {
	OriginMessageID uint64     `json:"origin_message_id"`
	SenderLabel     string     `json:"sender_label"`
	BodySnippet     string     `json:"body_snippet"`
	Timestamp       time.Time  `json:"timestamp"`
	IsEncrypted     bool       `json:"is_encrypted"`
	SourceKind      SourceKind `json:"source_kind"`
}

type Chain []Entry

// Origin describes the message being forwarded.
type Origin struct {
	MessageID   uint64
	SenderLabel string
	Body        string // plaintext
	CreatedAt   time.Time
	SourceKind  SourceKind
	Chain       Chain
}

// Sealer encrypts snippets when bodies are stored encrypted.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

type Builder struct {
	maxDepth int
	sealer   Sealer
}

// NewBuilder returns a Builder keeping at most maxDepth hops. sealer may be nil.
func NewBuilder(maxDepth int, sealer Sealer) *Builder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Builder{maxDepth: maxDepth, sealer: sealer}
}

// Build prepends a hop describing origin to origin's own chain. Hops past the
// depth bound are dropped from the old end.
func (b *Builder) Build(origin Origin) (Chain, error) {
	entry := Entry{
		OriginMessageID: origin.MessageID,
		SenderLabel:     origin.SenderLabel,
		BodySnippet:     Snippet(origin.Body),
		Timestamp:       origin.CreatedAt.UTC(),
		SourceKind:      origin.SourceKind,
	}
	if b.sealer != nil && entry.BodySnippet != "" {
		sealed, err := b.sealer.Seal(entry.BodySnippet)
		if err != nil {
			return nil, err
		}
		entry.BodySnippet = sealed
		entry.IsEncrypted = true
	}

	size := len(origin.Chain) + 1
	if size > b.maxDepth {
		size = b.maxDepth
	}
	chain := make(Chain, 0, size)
	chain = append(chain, entry)
	for _, hop := range origin.Chain {
		if len(chain) == size {
			break
		}
		chain = append(chain, hop)
	}
	return chain, nil
}

// Snippet truncates body to SnippetLength runes.
func Snippet(body string) string {
	if utf8.RuneCountInString(body) <= SnippetLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:SnippetLength])
}

// KindOf maps a container kind onto the chain's source kind; channels are
// recorded as groups.
func KindOf(isDirect bool) SourceKind {
	if isDirect {
		return SourceDM
	}
	return SourceGroup
}
