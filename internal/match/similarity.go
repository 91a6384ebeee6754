package match

import (
	"strings"

	"github.com/antzucaro/matchr"
	"gonum.org/v1/gonum/floats"
)

// Weights of the hybrid similarity blend. Callers apply a fixed 0.6
// acceptance threshold downstream, so the blend must not be re-balanced
// in isolation.
const (
	phoneticWeight = 0.45
	lexicalWeight  = 0.35
	semanticWeight = 0.20
)

// CosineSim returns the cosine similarity of two embedding vectors.
// Mismatched or empty vectors score zero.
func CosineSim(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// editRatio is an edit-distance similarity in [0,1]: 1 minus the
// Levenshtein distance over the longer length. Two empty strings are a
// perfect match.
func editRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	d := matchr.Levenshtein(a, b)
	return 1 - float64(d)/float64(max)
}

// HybridScore blends three similarity signals between two strings:
// phonetic (edit ratio of metaphone encodings), lexical (edit ratio of
// normalized strings), and semantic (cosine of the embedding vectors).
// The result lives roughly in [-1, 1.15] once callers apply the
// exact-match boost; no single signal dominates.
func HybridScore(a, b string, embA, embB []float64) float64 {
	na, nb := NormalizeWord(a), NormalizeWord(b)
	phA, _ := matchr.DoubleMetaphone(na)
	phB, _ := matchr.DoubleMetaphone(nb)
	ph := editRatio(phA, phB)
	lex := editRatio(na, nb)
	cos := CosineSim(embA, embB)
	return phoneticWeight*ph + lexicalWeight*lex + semanticWeight*cos
}

// ExactBoost rewards multi-word exact matches over partial ones: when the
// query equals the candidate (case-insensitive) the score is multiplied
// by 1 + alpha*(wordcount-1).
func ExactBoost(score float64, query string, alpha float64) float64 {
	words := len(strings.Fields(query))
	if words < 1 {
		words = 1
	}
	return score * (1 + alpha*float64(words-1))
}
