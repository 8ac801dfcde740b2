package brackets

import (
	"fmt"
	"strconv"
	"strings"
)

// SourceKind — вид выражения-источника слота.
type SourceKind string

const (
	SourceSeed   SourceKind = "seed"
	SourceWinner SourceKind = "winner"
	SourceLoser  SourceKind = "loser"
)

// SourceRef — разобранное выражение-источник: seed:N, winner:G или loser:G.
type SourceRef struct {
	Kind SourceKind
	Ref  int // номер посева либо номер игры
}

func (s SourceRef) String() string {
	return fmt.Sprintf("%s:%d", s.Kind, s.Ref)
}

// ParseSource разбирает выражение вида seed:N, winner:G или loser:G.
func ParseSource(expr string) (SourceRef, error) {
	kindStr, refStr, ok := strings.Cut(expr, ":")
	if !ok {
		return SourceRef{}, fmt.Errorf("malformed source expression %q", expr)
	}

	kind := SourceKind(kindStr)
	switch kind {
	case SourceSeed, SourceWinner, SourceLoser:
	default:
		return SourceRef{}, fmt.Errorf("unknown source kind in expression %q", expr)
	}

	ref, err := strconv.Atoi(refStr)
	if err != nil || ref < 1 {
		return SourceRef{}, fmt.Errorf("invalid reference in source expression %q", expr)
	}

	return SourceRef{Kind: kind, Ref: ref}, nil
}

func seedSource(n int) string   { return SourceRef{Kind: SourceSeed, Ref: n}.String() }
func winnerSource(g int) string { return SourceRef{Kind: SourceWinner, Ref: g}.String() }
func loserSource(g int) string  { return SourceRef{Kind: SourceLoser, Ref: g}.String() }
