// Package dictionary holds the BJJ vocabulary used to prime transcription
// and seed corrections. Immutable after construction; share by reference.
package dictionary

import (
	"fmt"
	"os"
	"strings"
)

// Category groups terms for the prompt builder.
type Category string

const (
	CategoryPositions   Category = "positions"
	CategorySubmissions Category = "submissions"
	CategoryGuards      Category = "guards"
	CategoryConcepts    Category = "concepts"
	CategoryNames       Category = "names"
)

// Dictionary is the term store.
type Dictionary struct {
	terms       map[Category][]string
	corrections map[string]string
}

// Stats summarizes dictionary contents.
type Stats struct {
	TotalTerms       int `json:"totalTerms"`
	TotalCorrections int `json:"totalCorrections"`
}

// New builds the default dictionary.
func New() *Dictionary {
	d := &Dictionary{
		terms:       map[Category][]string{},
		corrections: map[string]string{},
	}
	d.loadDefaults()
	return d
}

// FromFile loads extra terms from a file of "category: term" lines on top
// of the defaults. Unknown categories land in concepts.
func FromFile(path string) (*Dictionary, error) {
	d := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terms file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		category, term, found := strings.Cut(line, ":")
		if !found {
			d.terms[CategoryConcepts] = append(d.terms[CategoryConcepts], line)
			continue
		}
		cat := Category(strings.ToLower(strings.TrimSpace(category)))
		term = strings.TrimSpace(term)
		switch cat {
		case CategoryPositions, CategorySubmissions, CategoryGuards, CategoryConcepts, CategoryNames:
			d.terms[cat] = append(d.terms[cat], term)
		default:
			d.terms[CategoryConcepts] = append(d.terms[CategoryConcepts], term)
		}
	}
	return d, nil
}

// GeneratePrompt renders the domain prompt passed to the transcriber.
func (d *Dictionary) GeneratePrompt() string {
	var key []string
	for _, cat := range []Category{CategoryGuards, CategorySubmissions, CategoryPositions, CategoryNames} {
		terms := d.terms[cat]
		if len(terms) > 8 {
			terms = terms[:8]
		}
		key = append(key, terms...)
	}
	return "Brazilian Jiu-Jitsu instructional video. Technical terms include: " +
		strings.Join(key, ", ") + "."
}

// Corrections returns the seed correction map (misheard -> correct).
func (d *Dictionary) Corrections() map[string]string {
	return d.corrections
}

// Terms returns the terms of one category.
func (d *Dictionary) Terms(cat Category) []string {
	return d.terms[cat]
}

// Contains reports whether a term is known in any category.
func (d *Dictionary) Contains(term string) bool {
	needle := strings.ToLower(term)
	for _, terms := range d.terms {
		for _, t := range terms {
			if strings.ToLower(t) == needle {
				return true
			}
		}
	}
	return false
}

// Stats counts terms and corrections.
func (d *Dictionary) Stats() Stats {
	total := 0
	for _, terms := range d.terms {
		total += len(terms)
	}
	return Stats{TotalTerms: total, TotalCorrections: len(d.corrections)}
}

func (d *Dictionary) loadDefaults() {
	d.terms[CategoryGuards] = []string{
		"closed guard", "open guard", "half guard", "butterfly guard",
		"spider guard", "de la Riva", "X guard", "K guard", "worm guard",
		"single leg X", "RDLR",
	}
	d.terms[CategoryPositions] = []string{
		"mount", "side control", "back control", "north-south",
		"knee on belly", "turtle", "50/50", "ashi garami",
	}
	d.terms[CategorySubmissions] = []string{
		"armbar", "triangle", "kimura", "americana", "omoplata",
		"guillotine", "d'arce", "heel hook", "knee bar", "berimbolo",
	}
	d.terms[CategoryConcepts] = []string{
		"guard retention", "grip fighting", "base", "frames",
		"underhook", "overhook", "Imanari roll",
	}
	d.terms[CategoryNames] = []string{
		"John Danaher", "Gordon Ryan", "Craig Jones", "Mikey Musumeci",
		"Keenan Cornelius", "Adam Wardzinski", "Lachlan Giles",
		"Marcelo Garcia", "Bernardo Faria",
	}
	d.corrections = map[string]string{
		"coast guard":    "closed guard",
		"half cord":      "half guard",
		"x cord":         "x guard",
		"full cord":      "full guard",
		"butterfly cord": "butterfly guard",
		"spider cord":    "spider guard",
		"de la hiva":     "de la Riva",
		"berimbo":        "berimbolo",
		"guilatine":      "guillotine",
		"arm bar":        "armbar",
	}
}
