// Package extract pulls counterparty identity out of free-text bank
// transaction descriptions and resolves it against the client base.
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/schollz/closestmatch"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"reconciliation-service/internal/domain"
)

// UnidentifiedName is returned when no counterparty name can be parsed.
// Downstream display code depends on a non-empty value.
const UnidentifiedName = "Nome não identificado"

var (
	cnpjRegex  = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}|\d{14}`)
	cpfRegex   = regexp.MustCompile(`\d{3}\.\d{3}\.\d{3}-\d{2}|\d{11}`)
	digitRegex = regexp.MustCompile(`\D`)
	nameStop   = regexp.MustCompile(`\s{2,}|Ref:|REF:`)
)

// Identity is the best-effort extraction result for one description.
type Identity struct {
	TaxID string // canonical digits-only CNPJ (14) or CPF (11); empty when absent
	Name  string // candidate counterparty name, never empty
}

// FromDescription extracts a tax id and counterparty name from a bank
// transaction description. It never fails: a missing tax id yields an empty
// TaxID and a missing name yields UnidentifiedName.
func FromDescription(description string) Identity {
	id := Identity{Name: UnidentifiedName}

	match := cnpjRegex.FindString(description)
	if match == "" {
		match = cpfRegex.FindString(description)
	}
	if match == "" {
		return id
	}
	id.TaxID = digitRegex.ReplaceAllString(match, "")

	parts := strings.SplitN(description, match, 2)
	if len(parts) > 1 {
		name := strings.TrimSpace(nameStop.Split(strings.TrimSpace(parts[1]), 2)[0])
		if name != "" {
			id.Name = name
		}
	}
	return id
}

// NormalizeTaxID strips punctuation from a CNPJ/CPF.
func NormalizeTaxID(taxID string) string {
	return digitRegex.ReplaceAllString(taxID, "")
}

// FormatCNPJ renders a 14-digit key as 00.000.000/0000-00.
func FormatCNPJ(cnpj string) string {
	if len(cnpj) != 14 {
		return cnpj
	}
	return cnpj[0:2] + "." + cnpj[2:5] + "." + cnpj[5:8] + "/" + cnpj[8:12] + "-" + cnpj[12:14]
}

var nonAlphanumericRegex = regexp.MustCompile(`[^A-Z0-9 ]+`)
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName uppercases and strips accents and punctuation so that
// "Açougue São João" and "ACOUGUE SAO JOAO LTDA" compare by containment.
func NormalizeName(str string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, str)
	result = strings.ToUpper(result)
	result = nonAlphanumericRegex.ReplaceAllString(result, " ")
	result = whitespaceRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// Suggestion is one ranked fuzzy candidate.
type Suggestion struct {
	Client     domain.Client `json:"client"`
	Similarity float64       `json:"similarity"`
}

// Resolution is the outcome of resolving an identity against the client base.
type Resolution struct {
	Exact       *domain.Client
	Suggestions []Suggestion // up to 3, best first; empty when Exact is set
}

// Resolver finds clients by normalized tax id first, then by fuzzy name.
// It is the single identity-resolution routine shared by the PIX path, the
// spreadsheet importer and duplicate detection.
type Resolver struct {
	clients    []domain.Client
	byTaxID    map[string]int
	normalized []string
	byNormName map[string]int
	cm         *closestmatch.ClosestMatch
}

// NewResolver indexes the given clients for resolution.
func NewResolver(clients []domain.Client) *Resolver {
	r := &Resolver{
		clients:    clients,
		byTaxID:    make(map[string]int, len(clients)),
		byNormName: make(map[string]int, len(clients)),
	}
	for i, c := range clients {
		if key := NormalizeTaxID(c.CNPJ); key != "" {
			r.byTaxID[key] = i
		}
		n := NormalizeName(c.Name)
		r.normalized = append(r.normalized, n)
		if _, dup := r.byNormName[n]; !dup {
			r.byNormName[n] = i
		}
	}
	if len(r.normalized) > 0 {
		r.cm = closestmatch.New(r.normalized, []int{3, 4})
	}
	return r
}

// Resolve looks up a client by tax id, falling back to fuzzy name matching.
// maxSuggestions caps the fuzzy list; 3 matches the report behavior.
func (r *Resolver) Resolve(taxID, name string) Resolution {
	if key := NormalizeTaxID(taxID); key != "" {
		if i, ok := r.byTaxID[key]; ok {
			c := r.clients[i]
			return Resolution{Exact: &c}
		}
	}
	return Resolution{Suggestions: r.SuggestByName(name, 3)}
}

// SuggestByName returns fuzzy candidates whose normalized name contains, or
// is contained by, the candidate name, ranked by levenshtein similarity.
func (r *Resolver) SuggestByName(name string, limit int) []Suggestion {
	key := NormalizeName(name)
	if key == "" || key == NormalizeName(UnidentifiedName) {
		return nil
	}

	seen := make(map[int]bool)
	var out []Suggestion
	add := func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		out = append(out, Suggestion{Client: r.clients[i], Similarity: similarity(key, r.normalized[i])})
	}

	for i, n := range r.normalized {
		if n == "" {
			continue
		}
		if strings.Contains(n, key) || strings.Contains(key, n) {
			add(i)
		}
	}

	// Widen with n-gram neighbors when containment found nothing.
	if len(out) == 0 && r.cm != nil {
		for _, n := range r.cm.ClosestN(key, limit) {
			if i, ok := r.byNormName[n]; ok && similarity(key, n) >= 0.5 {
				add(i)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
