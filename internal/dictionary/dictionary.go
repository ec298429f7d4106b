// Package dictionary loads the quiz word list. The list is read once at
// startup and is read-only afterwards, so it can be shared freely.
package dictionary

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Dictionary is the immutable source of quiz words.
type Dictionary struct {
	words []string
}

// Load reads a newline-delimited word list from path. Blank lines and
// surrounding whitespace are ignored. An unreadable or empty list is an
// error; the server cannot run without words.
func Load(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" {
			words = append(words, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("dictionary %s contains no words", path)
	}

	return &Dictionary{words: words}, nil
}

// Len returns the number of loaded words.
func (d *Dictionary) Len() int {
	return len(d.words)
}

// Sample draws n words uniformly at random, with replacement.
func (d *Dictionary) Sample(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = d.words[rand.Intn(len(d.words))]
	}
	return words
}
