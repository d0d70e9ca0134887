package identity

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
)

//go:embed words.yaml
var wordsYAML []byte

type wordLists struct {
	Adjectives []string `yaml:"adjectives"`
	Nouns      []string `yaml:"nouns"`
}

// words is decoded once at init; the lists are compiled into the binary so a
// decode failure is a build defect, not a runtime condition.
var words = mustLoadWords()

func mustLoadWords() wordLists {
	var w wordLists
	if err := yaml.Unmarshal(wordsYAML, &w); err != nil {
		panic(fmt.Sprintf("identity: decoding embedded word lists: %v", err))
	}
	if len(w.Adjectives) == 0 || len(w.Nouns) == 0 {
		panic("identity: embedded word lists are empty")
	}
	return w
}

// GenerateNickname draws an adjective-noun display name such as
// "Swift Falcon".
func GenerateNickname(src dice.Source) string {
	adj := words.Adjectives[src.Intn(len(words.Adjectives))]
	noun := words.Nouns[src.Intn(len(words.Nouns))]
	return capitalize(adj) + " " + capitalize(noun)
}

// GenerateSlug draws a shareable room slug such as "swift-falcon-42".
func GenerateSlug(src dice.Source) string {
	adj := words.Adjectives[src.Intn(len(words.Adjectives))]
	noun := words.Nouns[src.Intn(len(words.Nouns))]
	return adj + "-" + noun + "-" + strconv.Itoa(src.Intn(100))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// ValidSlug reports whether s looks like a generated or user-chosen slug:
// lowercase words separated by hyphens.
func ValidSlug(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
		return false
	}
	for _, r := range s {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}
