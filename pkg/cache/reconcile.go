package cache

import (
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// Reconcile matches the file's current blocks against the cached entry and
// reuses diagnostics of blocks whose content is unchanged, shifting their
// spans by the block's movement. It returns the reused diagnostics and a
// mask aligned with currentBlocks: true means that block's cached results
// were reused, false marks the block dirty.
//
// The entry's config hash and rule versions must match exactly; otherwise
// nothing is reused.
func (s *Store) Reconcile(path string, currentBlocks []BlockEntry, configHash Hash, ruleVersions map[string]string) ([]plugin.Diagnostic, []bool) {
	matched := make([]bool, len(currentBlocks))

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil, matched
	}
	entry := s.getLocked(path)
	if entry == nil || entry.ConfigHash != configHash {
		return nil, matched
	}
	if len(entry.RuleVersions) != len(ruleVersions) {
		return nil, matched
	}
	for name, version := range entry.RuleVersions {
		if ruleVersions[name] != version {
			return nil, matched
		}
	}

	// Several blocks can share identical content; candidates are grouped by
	// hash and each cached block matches at most one current block.
	candidates := make(map[Hash][]*BlockEntry)
	for i := range entry.Blocks {
		b := &entry.Blocks[i]
		candidates[b.Hash] = append(candidates[b.Hash], b)
	}

	var reused []plugin.Diagnostic
	for i := range currentBlocks {
		current := &currentBlocks[i]
		group := candidates[current.Hash]
		if len(group) == 0 {
			continue
		}
		best := nearestBlock(current, group)
		matchedBlock := group[best]
		candidates[current.Hash] = append(group[:best], group[best+1:]...)
		matched[i] = true

		shift := int64(current.Span.Start) - int64(matchedBlock.Span.Start)
		for _, d := range matchedBlock.Diagnostics {
			reused = append(reused, d.Shift(shift))
		}
	}

	return reused, matched
}

// nearestBlock picks the candidate whose original start is closest to the
// current block's start.
func nearestBlock(current *BlockEntry, group []*BlockEntry) int {
	best := 0
	bestDist := int64(-1)
	for i, cand := range group {
		dist := int64(current.Span.Start) - int64(cand.Span.Start)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

// Distribute assigns diagnostics to the blocks that contain them, skipping
// diagnostics produced by global-isolation rules (those are not reusable per
// block). diagnostics must be sorted by span start. The blocks are returned
// with their Diagnostics filled, ready to cache.
func Distribute(blocks []BlockEntry, diagnostics []plugin.Diagnostic, globalRules map[string]bool) []BlockEntry {
	local := make([]*plugin.Diagnostic, 0, len(diagnostics))
	for i := range diagnostics {
		if !globalRules[diagnostics[i].RuleID] {
			local = append(local, &diagnostics[i])
		}
	}

	idx := 0
	for bi := range blocks {
		block := &blocks[bi]
		for idx < len(local) && local[idx].Span.Start < block.Span.Start {
			idx++
		}
		var assigned []plugin.Diagnostic
		for j := idx; j < len(local); j++ {
			d := local[j]
			if d.Span.Start >= block.Span.End {
				break
			}
			if d.Span.End <= block.Span.End {
				assigned = append(assigned, *d)
			}
		}
		block.Diagnostics = assigned
	}
	return blocks
}
