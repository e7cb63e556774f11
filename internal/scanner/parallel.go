package scanner

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elfview"
)

// ScanSectionsParallel is the non-normative optimization spec.md section 5
// explicitly allows: "a future implementation may parallelize C2 across
// sections or address sub-ranges, preserving deterministic ordering by
// sorting results at the merge point." jobs caps the number of sections
// scanned concurrently; a value <= 1 scans sequentially (equivalent to
// calling New(...).All() directly) and is the default everywhere in
// pltcall except when the CLI's --jobs flag or the config file's jobs
// setting raises it.
//
// buf must not be mutated or freed until this returns; each goroutine
// decodes a read-only view of the same buffer via its own
// *decoder.Decoder, matching the "no shared mutable state" model spec.md
// section 5 requires even under parallel execution.
func ScanSectionsParallel(buf []byte, sections []elfview.ExecutableSection, pltBase, pltSize uint64, jobs int) ([]Terminal, error) {
	if jobs < 1 {
		jobs = 1
	}
	if jobs == 1 || len(sections) <= 1 {
		dec := decoder.New(buf)
		return New(dec, sections, pltBase, pltSize).All(), nil
	}

	results := make([][]Terminal, len(sections))
	g := new(errgroup.Group)
	g.SetLimit(jobs)

	for i, sec := range sections {
		i, sec := i, sec
		g.Go(func() error {
			dec := decoder.New(buf)
			results[i] = New(dec, []elfview.ExecutableSection{sec}, pltBase, pltSize).All()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Terminal
	for _, r := range results {
		out = append(out, r...)
	}
	// Sections were scanned independently and out-of-order relative to
	// wall-clock completion; restore the section-header-order, ascending
	// vaddr guarantee spec.md section 4.2 requires.
	sort.Slice(out, func(i, j int) bool { return out[i].VAddr < out[j].VAddr })
	return out, nil
}
