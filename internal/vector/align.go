package vector

import "github.com/coldeck/mrcore/internal/errors"

// CheckAlignment enforces that any two vectors passed together to a task
// have aligned chunk boundaries: same nChunks and the same
// chunk2StartElem(i) for every i. It is validated before fan-out and not
// applied to writable (appendable) vectors, which are outputs and
// therefore exempt.
func CheckAlignment(vecs ...Vector) error {
	var ref Vector
	for _, v := range vecs {
		if v.Writable() {
			continue
		}
		if ref == nil {
			ref = v
			continue
		}
		if v.NChunks() != ref.NChunks() {
			return errors.Fatalf("vector %v has %d chunks, vector %v has %d: misaligned",
				v.ID(), v.NChunks(), ref.ID(), ref.NChunks())
		}
		for i := 0; i < ref.NChunks(); i++ {
			if v.Chunk2StartElem(i) != ref.Chunk2StartElem(i) {
				return errors.Fatalf("vector %v and %v disagree on chunk %d's start row: %d != %d",
					v.ID(), ref.ID(), i, v.Chunk2StartElem(i), ref.Chunk2StartElem(i))
			}
		}
	}
	return nil
}
