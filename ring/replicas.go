package ring

import "context"

// Replicas enumerates the r successor nodes that hold key's replicas:
// replicas(k) = [succ_1(k), succ_2(k), ..., succ_r(k)] where succ_{i+1} is
// the successor of succ_i on the ring. r=1 returns a single-element slice
// (no replication), used for index postings; r=2 is the file default.
func Replicas(ctx context.Context, n *Node, key Id, r int) ([]Peer, error) {
	if r < 1 {
		r = 1
	}
	first, err := n.FindSuccessor(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make([]Peer, 0, r)
	out = append(out, first)

	cur := first
	for len(out) < r {
		if cur.Equal(n.Self()) {
			next := n.GetSuccessor()
			if next.Equal(cur) {
				break // ring of one, no further replicas exist
			}
			out = append(out, next)
			cur = next
			continue
		}
		next, err := n.transport.GetSuccessor(ctx, cur)
		if err != nil {
			break // best-effort: fewer replicas than requested is tolerated
		}
		if next.Equal(cur) || containsPeer(out, next) {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

func containsPeer(peers []Peer, p Peer) bool {
	for _, x := range peers {
		if x.Equal(p) {
			return true
		}
	}
	return false
}
