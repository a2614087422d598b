package cpu

// branchTable is a 512-entry, 2-way-associative branch history table of
// 2-bit saturating counters, keyed by pc>>2. Update policy: taken
// increments (saturating at 3), not-taken decrements (saturating at 0);
// a new allocation starts from state 2 if the resolving branch was
// taken, else 1.
const (
	bhtSets = 256 // 512 entries / 2 ways
	bhtWays = 2
)

type bhtEntry struct {
	valid bool
	tag   uint64
	ctr   uint8
}

type branchTable struct {
	sets [bhtSets][bhtWays]bhtEntry
}

func newBranchTable() branchTable { return branchTable{} }

func bhtIndex(pc uint64) (set int, tag uint64) {
	key := pc >> 2
	return int(key % bhtSets), key / bhtSets
}

// Predict returns whether the branch at pc is predicted taken. An
// untracked pc predicts not-taken (counter state 1 or below), matching
// a fresh allocation's not-taken starting state.
func (b *branchTable) Predict(pc uint64) bool {
	set, tag := bhtIndex(pc)
	for _, e := range b.sets[set] {
		if e.valid && e.tag == tag {
			return e.ctr >= 2
		}
	}
	return false
}

// Update records a branch's actual outcome, allocating a new entry on a
// cold miss (evicting the lowest-counter way) and saturating the
// counter on a hit.
func (b *branchTable) Update(pc uint64, taken bool) {
	set, tag := bhtIndex(pc)
	ways := &b.sets[set]
	for i := range ways {
		if ways[i].valid && ways[i].tag == tag {
			if taken {
				if ways[i].ctr < 3 {
					ways[i].ctr++
				}
			} else if ways[i].ctr > 0 {
				ways[i].ctr--
			}
			return
		}
	}
	victim := 0
	for i := 1; i < bhtWays; i++ {
		if !ways[i].valid || (ways[victim].valid && ways[i].ctr < ways[victim].ctr) {
			victim = i
		}
	}
	start := uint8(1)
	if taken {
		start = 2
	}
	ways[victim] = bhtEntry{valid: true, tag: tag, ctr: start}
}
