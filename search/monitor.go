package search

import (
	"github.com/poiesic/minutes/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterVectorQuery(matches []core.Match)
	VerbatimHit(match core.Match)
	Finish(results []Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                  {}
func (n *noopMonitor) AfterVectorQuery(_ []core.Match) {}
func (n *noopMonitor) VerbatimHit(_ core.Match)        {}
func (n *noopMonitor) Finish(_ []Result)               {}
