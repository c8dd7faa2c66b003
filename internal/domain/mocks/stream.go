package mocks

import "iter"

// Stream returns a chunk sequence for ChatStream expectations. A non-nil err
// is yielded after the chunks.
func Stream(chunks []string, err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}
