package memory

import (
	"fmt"
	"hash/fnv"
	"sort"
)

const tagBuckets = 16

// Cluster groups node IDs sharing a kind and a tag-hash bucket, with the
// mean importance of its members. Clusters are created lazily on first store
// into a bucket and rebuilt wholesale after pruning so they can never
// reference a removed node.
type Cluster struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Bucket     int      `json:"bucket"`
	MemberIDs  []string `json:"member_ids"`
	Importance float64  `json:"importance"`
}

func clusterKey(kind Kind, tags []string) string {
	return fmt.Sprintf("%s/%02d", kind, tagBucket(tags))
}

func tagBucket(tags []string) int {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)

	h := fnv.New32a()
	for _, t := range sorted {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}

	return int(h.Sum32() % tagBuckets)
}

// absorb adds or refreshes a member and recomputes the aggregate from the
// supplied importance lookup.
func (c *Cluster) absorb(id string, importanceOf func(string) (float64, bool)) {
	found := false
	for _, member := range c.MemberIDs {
		if member == id {
			found = true
			break
		}
	}

	if !found {
		c.MemberIDs = append(c.MemberIDs, id)
	}

	var total float64
	kept := c.MemberIDs[:0]

	for _, member := range c.MemberIDs {
		importance, ok := importanceOf(member)
		if !ok {
			continue
		}
		kept = append(kept, member)
		total += importance
	}

	c.MemberIDs = kept

	if len(c.MemberIDs) > 0 {
		c.Importance = total / float64(len(c.MemberIDs))
	} else {
		c.Importance = 0
	}
}
