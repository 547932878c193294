// Package ticketid mints structured ticket identifiers of the form
// PREFIX-DDMMYY-SEQ-USR-RAND, e.g. LAN-050324-007-ADI-QK42.
package ticketid

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

const (
	dateLayout = "020106"
	maxSeq     = 999
	letters    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits     = "0123456789"
)

var pattern = regexp.MustCompile(`^[A-Z]{3}-\d{6}-\d{3}-[A-Z]{3}-[A-Z]{2}\d{2}$`)

// IsValid reports whether id has the ticket id shape.
func IsValid(id string) bool {
	return pattern.MatchString(id)
}

// SequenceSource lists existing ids starting with a PREFIX-DDMMYY- prefix.
type SequenceSource interface {
	ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Generator produces ticket ids. Sequence numbers come from scanning existing
// ids; the scan is not atomic with the insert, so callers retry on a
// uniqueness violation.
type Generator struct {
	source  SequenceSource
	logger  *zap.Logger
	now     func() time.Time
	randInt func(n int) int
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRand overrides the random source; fn must return a value in [0, n).
func WithRand(fn func(n int) int) Option {
	return func(g *Generator) { g.randInt = fn }
}

// NewGenerator builds a Generator backed by source.
func NewGenerator(source SequenceSource, logger *zap.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		source:  source,
		logger:  logger,
		now:     time.Now,
		randInt: cryptoInt,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate mints an id for a ticket of ticketType submitted by submitterName.
// A failed sequence lookup falls back to sequence 001.
func (g *Generator) Generate(ctx context.Context, ticketType, submitterName string) string {
	prefix := code(ticketType)
	date := g.now().Format(dateLayout)
	scope := prefix + "-" + date + "-"

	seq := 1
	ids, err := g.source.ListIDsWithPrefix(ctx, scope)
	if err != nil {
		g.logger.Warn("ticket sequence lookup failed; using sequence 1",
			zap.String("prefix", scope), zap.Error(err))
	} else {
		seq = nextSeq(scope, ids)
	}

	return fmt.Sprintf("%s%03d-%s-%s", scope, seq, code(submitterName), g.suffix())
}

func (g *Generator) suffix() string {
	var b strings.Builder
	b.WriteByte(letters[g.randInt(len(letters))])
	b.WriteByte(letters[g.randInt(len(letters))])
	b.WriteByte(digits[g.randInt(len(digits))])
	b.WriteByte(digits[g.randInt(len(digits))])
	return b.String()
}

// nextSeq returns one past the highest SEQ segment among ids sharing scope.
func nextSeq(scope string, ids []string) int {
	highest := 0
	for _, id := range ids {
		rest, ok := strings.CutPrefix(id, scope)
		if !ok {
			continue
		}
		segment, _, _ := strings.Cut(rest, "-")
		n, err := strconv.Atoi(segment)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	if highest >= maxSeq {
		return maxSeq
	}
	return highest + 1
}

// code takes the first three letters of s, uppercased, padded with X.
func code(s string) string {
	out := make([]byte, 0, 3)
	for _, r := range s {
		if len(out) == 3 {
			break
		}
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		out = append(out, byte(unicode.ToUpper(r)))
	}
	for len(out) < 3 {
		out = append(out, 'X')
	}
	return string(out)
}

func cryptoInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return int(time.Now().UnixNano() % int64(n))
	}
	return int(v.Int64())
}
