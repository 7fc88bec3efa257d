package homologation

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is the text a matcher compares.
type Document string

// ProductDocument joins the descriptive fields of a product.
func ProductDocument(name, description, domain string) Document {
	return Document(name + " " + description + " " + domain)
}

// ItemDocument joins the descriptive fields of an official item.
func ItemDocument(o *OfficialItem) Document {
	return Document(o.Name + " " + o.Description + " " + o.Category + " " + o.Brand)
}

// Matcher scores products against official items with word unigram and
// bigram TF-IDF vectors compared by cosine similarity.
type Matcher struct {
	vocab map[string]int
	idf   []float64
	items []*OfficialItem
	vecs  []sparse
}

type sparse map[int]float64

// Train fits the vocabulary on corpus and indexes items. When corpus is
// empty the item documents are used instead.
func Train(corpus []Document, items []*OfficialItem) *Matcher {
	docs := make([]Document, len(items))
	for i, it := range items {
		docs[i] = ItemDocument(it)
	}
	if len(corpus) == 0 {
		corpus = docs
	}

	m := &Matcher{vocab: map[string]int{}, items: items}
	df := map[string]int{}
	for _, d := range corpus {
		seen := map[string]bool{}
		for _, term := range terms(d) {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}
	vocab := make([]string, 0, len(df))
	for t := range df {
		vocab = append(vocab, t)
	}
	sort.Strings(vocab)

	n := float64(len(corpus))
	m.idf = make([]float64, len(vocab))
	for i, t := range vocab {
		m.vocab[t] = i
		m.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	m.vecs = make([]sparse, len(docs))
	for i, d := range docs {
		m.vecs[i] = m.vector(d)
	}
	return m
}

// Vocabulary reports the number of known terms.
func (m *Matcher) Vocabulary() int { return len(m.vocab) }

// Find returns the topN items most similar to doc, best first. Scores are
// percentages rounded to two places.
func (m *Matcher) Find(doc Document, topN int) []Match {
	if topN <= 0 || len(m.items) == 0 {
		return nil
	}
	v := m.vector(doc)

	type scored struct {
		idx int
		sim float64
	}
	all := make([]scored, len(m.items))
	for i, iv := range m.vecs {
		all[i] = scored{idx: i, sim: dot(v, iv)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].sim > all[j].sim })
	if len(all) > topN {
		all = all[:topN]
	}

	out := make([]Match, len(all))
	for i, s := range all {
		out[i] = Match{
			Item:       m.items[s.idx],
			Confidence: decimal.NewFromFloat(s.sim * 100).Round(2),
		}
	}
	return out
}

// vector is the L2-normalized TF-IDF vector of d over the fitted vocabulary.
func (m *Matcher) vector(d Document) sparse {
	v := sparse{}
	for _, t := range terms(d) {
		if i, ok := m.vocab[t]; ok {
			v[i]++
		}
	}
	var norm2 float64
	for i, tf := range v {
		w := tf * m.idf[i]
		v[i] = w
		norm2 += w * w
	}
	if norm2 == 0 {
		return v
	}
	l := math.Sqrt(norm2)
	for i := range v {
		v[i] /= l
	}
	return v
}

func dot(a, b sparse) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var s float64
	for i, x := range a {
		s += x * b[i]
	}
	return s
}

var (
	folder     = cases.Fold()
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// terms tokenizes d into case-folded, accent-free words of two or more
// characters, drops English stop words and adds adjacent bigrams.
func terms(d Document) []string {
	text, _, err := transform.String(stripMarks, string(d))
	if err != nil {
		text = string(d)
	}
	text = folder.String(text)

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	kept := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 || stopWords[w] {
			continue
		}
		kept = append(kept, w)
	}

	out := make([]string, 0, 2*len(kept))
	out = append(out, kept...)
	for i := 1; i < len(kept); i++ {
		out = append(out, kept[i-1]+" "+kept[i])
	}
	return out
}
