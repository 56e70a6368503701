package search

import "github.com/poiesic/notedex/core"

// SearchMonitor provides hooks to observe a query as it moves through its
// stages. All callbacks arrive from the calling goroutine after the stage
// producing them has joined, so implementations need no locking. Monitors
// observe; they cannot alter the result.
type SearchMonitor interface {
	// Start is called once, before any derivation. The query string names
	// the probe: "image:<path>", "text:<query>", or "note:<id>".
	Start(query string)

	// SignalDerived is called once per query field that was attempted,
	// with a nil error on success.
	SignalDerived(field core.Field, err error)

	// PrimarySignalMissing is called instead of later stages when the
	// anchor signal could not be derived and the query returns empty.
	PrimarySignalMissing(err error)

	// FieldSearched is called with the raw neighbours of each searched
	// field, before threshold filtering.
	FieldSearched(field core.Field, hits []core.Neighbor)

	// FieldFiltered is called with the neighbours of a field that
	// survived the per-field threshold.
	FieldFiltered(field core.Field, kept []core.Neighbor)

	// CandidateFused is called once per candidate with its fused score
	// and the per-field evidence behind it, before the global threshold.
	CandidateFused(id core.ID, score float64, evidence map[core.Field]float64)

	// Finish is called once with the final ordered matches, which may be
	// nil when nothing qualified.
	Finish(matches []core.Match)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string) {}

func (n *noopMonitor) SignalDerived(_ core.Field, _ error) {}

func (n *noopMonitor) PrimarySignalMissing(_ error) {}

func (n *noopMonitor) FieldSearched(_ core.Field, _ []core.Neighbor) {}

func (n *noopMonitor) FieldFiltered(_ core.Field, _ []core.Neighbor) {}

func (n *noopMonitor) CandidateFused(_ core.ID, _ float64, _ map[core.Field]float64) {}

func (n *noopMonitor) Finish(_ []core.Match) {}
