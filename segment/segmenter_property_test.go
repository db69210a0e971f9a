package segment

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestSegmenterChunkingPreservesContentProperty verifies §8's round-trip
// invariant for the streaming segmenter: however a sentence stream is
// split into AddChunk calls, the words recovered across every returned
// sentence plus the final Flush must match the words of the original,
// unsplit text. Chunk boundaries may only ever delay a word's delivery,
// never drop, duplicate, or reorder one.
func TestSegmenterChunkingPreservesContentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("splitting a stream into arbitrary chunks loses no words", prop.ForAll(
		func(words []string, splits []int) bool {
			if len(words) == 0 {
				return true
			}
			text := strings.Join(words, " ") + "."

			s := New()
			var got []string
			pos := 0
			for _, n := range splits {
				if n <= 0 || pos >= len(text) {
					continue
				}
				end := pos + n
				if end > len(text) {
					end = len(text)
				}
				got = append(got, s.AddChunk(text[pos:end])...)
				pos = end
			}
			if pos < len(text) {
				got = append(got, s.AddChunk(text[pos:])...)
			}
			if remainder := s.Flush(); remainder != "" {
				got = append(got, remainder)
			}

			return strings.Join(got, " ") == text
		},
		gen.SliceOf(gen.AlphaString().SuchThat(func(s string) bool { return s != "" })),
		gen.SliceOfN(20, gen.IntRange(1, 5)),
	))

	properties.TestingRun(t)
}
