// Package textvec turns free text into term-weighted feature vectors over a
// vocabulary learned from the knowledge base corpus.
package textvec

import (
	"fmt"
	"math"
	"strings"
)

// Weighting selects how term counts are turned into vector components.
type Weighting string

const (
	// WeightingTF uses raw term frequency.
	WeightingTF Weighting = "tf"
	// WeightingTFIDF scales term frequency by smoothed inverse document frequency.
	WeightingTFIDF Weighting = "tfidf"
)

// ParseWeighting parses a configuration value. Empty input selects WeightingTF.
func ParseWeighting(s string) (Weighting, error) {
	switch Weighting(strings.ToLower(strings.TrimSpace(s))) {
	case "", WeightingTF:
		return WeightingTF, nil
	case WeightingTFIDF:
		return WeightingTFIDF, nil
	default:
		return "", fmt.Errorf("unknown weighting %q (want tf or tfidf)", s)
	}
}

// Options configures a Vectorizer.
type Options struct {
	Weighting Weighting
}

// Vector is a dense feature vector. Vectors are only comparable when produced
// by the same Vectorizer.
type Vector []float64

// IsZero reports whether every component is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Vectorizer maps text onto a fixed vocabulary. It is immutable after
// construction and safe for concurrent use.
type Vectorizer struct {
	index     map[string]int
	terms     []string
	idf       []float64
	unseenIDF float64
	weighting Weighting
}

// NewVectorizer builds the vocabulary from corpus. Terms are numbered in order
// of first appearance so the layout is deterministic for a given corpus.
func NewVectorizer(corpus []string, opts Options) *Vectorizer {
	weighting := opts.Weighting
	if weighting == "" {
		weighting = WeightingTF
	}

	v := &Vectorizer{
		index:     make(map[string]int),
		weighting: weighting,
	}

	docFreq := make([]int, 0)
	for _, doc := range corpus {
		seen := make(map[int]bool)
		for _, tok := range Tokenize(doc) {
			i, ok := v.index[tok]
			if !ok {
				i = len(v.terms)
				v.index[tok] = i
				v.terms = append(v.terms, tok)
				docFreq = append(docFreq, 0)
			}
			if !seen[i] {
				seen[i] = true
				docFreq[i]++
			}
		}
	}

	v.idf = make([]float64, len(v.terms))
	n := float64(len(corpus))
	weight := func(df int) float64 {
		if weighting == WeightingTFIDF {
			return math.Log((1+n)/(1+float64(df))) + 1
		}
		return 1
	}
	for i, df := range docFreq {
		v.idf[i] = weight(df)
	}
	v.unseenIDF = weight(0)

	return v
}

// Vectorize returns a fresh vector for text, Dimensions()+1 long. The last
// component holds the combined weight of out-of-vocabulary tokens: they match
// no entry but still lengthen the query, as if the vocabulary were the union
// of both texts. Empty input yields the zero vector.
func (v *Vectorizer) Vectorize(text string) Vector {
	vec := make(Vector, len(v.terms)+1)
	var unknown map[string]float64
	for _, tok := range Tokenize(text) {
		if i, ok := v.index[tok]; ok {
			vec[i] += v.idf[i]
			continue
		}
		if unknown == nil {
			unknown = make(map[string]float64)
		}
		unknown[tok] += v.unseenIDF
	}

	var oov float64
	for _, w := range unknown {
		oov += w * w
	}
	vec[len(v.terms)] = math.Sqrt(oov)
	return vec
}

// OutOfVocabulary returns the out-of-vocabulary component of vec.
func (v *Vectorizer) OutOfVocabulary(vec Vector) float64 {
	if len(vec) <= len(v.terms) {
		return 0
	}
	return vec[len(v.terms)]
}

// Dimensions returns the vocabulary size.
func (v *Vectorizer) Dimensions() int {
	return len(v.terms)
}

// Vocabulary returns a copy of the terms in vector order.
func (v *Vectorizer) Vocabulary() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Weighting returns the weighting scheme in use.
func (v *Vectorizer) Weighting() Weighting {
	return v.weighting
}
