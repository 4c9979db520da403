// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MinQueryLength is the shortest accepted query, in runes.
	MinQueryLength = 2

	// MaxQueryLength is the longest accepted query, in runes.
	MaxQueryLength = 500
)

// CleanQuery trims query, collapses runs of whitespace, and checks its length.
func CleanQuery(query string) (string, error) {
	cleaned := strings.Join(strings.Fields(query), " ")
	n := utf8.RuneCountInString(cleaned)
	if n < MinQueryLength || n > MaxQueryLength {
		return "", fmt.Errorf("%w: must be %d-%d characters", ErrInvalidQuery, MinQueryLength, MaxQueryLength)
	}
	return cleaned, nil
}

var numberPattern = regexp.MustCompile(`\d+`)

// ParseIndices extracts 1-based citation numbers from free text, keeping
// those in [1, n] in order of appearance, without repeats, up to limit.
// A non-positive limit keeps all of them.
func ParseIndices(text string, n, limit int) []int {
	var (
		out  []int
		seen = make(map[int]struct{})
	)
	for _, m := range numberPattern.FindAllString(text, -1) {
		i, err := strconv.Atoi(m)
		if err != nil || i < 1 || i > n {
			continue
		}
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
