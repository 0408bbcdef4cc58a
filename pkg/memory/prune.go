package memory

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/errors"
)

// PruneReport counts removals per memory kind.
type PruneReport struct {
	Removed       map[Kind]int `json:"removed"`
	RemovedTotal  int          `json:"removed_total"`
	RetainedTotal int          `json:"retained_total"`
}

// Prune removes aged or low-value memories. A node is a removal candidate
// when it outlived maxAgeDays, or when it is unimportant, rarely accessed
// and older than a week. Protected kinds and high-importance nodes are
// always retained. Clusters are rebuilt afterwards so no cluster can
// reference a removed node.
func (store *Store) Prune(ctx context.Context, maxAgeDays int, minImportance float64) (*PruneReport, error) {
	if maxAgeDays <= 0 {
		return nil, errors.ErrValidation.WithMessagef("maxAgeDays must be positive, got %d", maxAgeDays)
	}

	if minImportance < 0 || minImportance > 1 {
		return nil, errors.ErrValidation.WithMessagef("minImportance %v outside [0,1]", minImportance)
	}

	now := store.now()
	report := &PruneReport{Removed: map[Kind]int{}}

	var removedIDs []string

	store.sweep.Lock()

	for _, sh := range store.shards {
		sh.mu.Lock()
		for id, node := range sh.nodes {
			ageDays := now.Sub(node.CreatedAt).Hours() / 24

			candidate := ageDays > float64(maxAgeDays) ||
				(node.Importance < minImportance && node.AccessCount < 2 && ageDays > 7)

			if !candidate {
				continue
			}

			if protectedKinds[node.Kind] || node.Importance > 0.8 {
				continue
			}

			delete(sh.nodes, id)
			removedIDs = append(removedIDs, id)
			report.Removed[node.Kind]++
			report.RemovedTotal++
		}
		sh.mu.Unlock()
	}

	store.rebuildClusters()
	report.RetainedTotal = store.countLocked()

	store.sweep.Unlock()

	if store.mirror != nil && len(removedIDs) > 0 {
		go store.mirrorDelete(removedIDs)
	}

	log.Info("memory pruned",
		"removed", report.RemovedTotal,
		"retained", report.RetainedTotal,
		"max_age_days", maxAgeDays,
		"min_importance", minImportance)

	return report, nil
}

// rebuildClusters recreates the cluster map from surviving nodes. Caller
// must hold the exclusive sweep lock.
func (store *Store) rebuildClusters() {
	fresh := make(map[string]*Cluster)

	for _, sh := range store.shards {
		sh.mu.RLock()
		for _, node := range sh.nodes {
			key := clusterKey(node.Kind, node.Tags)

			cluster, ok := fresh[key]
			if !ok {
				cluster = &Cluster{Name: key, Kind: node.Kind, Bucket: tagBucket(node.Tags)}
				fresh[key] = cluster
			}

			cluster.MemberIDs = append(cluster.MemberIDs, node.ID)
			cluster.Importance += node.Importance
		}
		sh.mu.RUnlock()
	}

	for _, cluster := range fresh {
		if len(cluster.MemberIDs) > 0 {
			cluster.Importance /= float64(len(cluster.MemberIDs))
		}
	}

	store.clusterMu.Lock()
	store.clusters = fresh
	store.clusterMu.Unlock()
}

func (store *Store) countLocked() int {
	total := 0
	for _, sh := range store.shards {
		sh.mu.RLock()
		total += len(sh.nodes)
		sh.mu.RUnlock()
	}
	return total
}
