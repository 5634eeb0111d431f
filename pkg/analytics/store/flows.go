package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// flowIdentityColumns are the columns of ux_flows_identity, the unique key
// the batch writer upserts flows against.
var flowIdentityColumns = []string{
	"device", "basis", "from_value", "to_value",
	"proto", "dest_port", "src_endpoint_id", "dst_endpoint_id", "view_kind",
}

// FlowDedupResult reports what DedupFlowIdentities merged.
type FlowDedupResult struct {
	DuplicateGroups int64 `json:"duplicate_groups"`
	RowsMerged      int64 `json:"rows_merged"`
}

// DedupFlowIdentities merges flow rows that share an identity tuple into the
// row with the largest id: counters are summed, first_seen/last_seen widened,
// and the top_rules/top_apps maps added together. Afterwards the identity
// unique index is created if absent. Needed once on databases written before
// the index existed; on an already-clean database it is a no-op.
func (s *GORMStore) DedupFlowIdentities(ctx context.Context) (*FlowDedupResult, error) {
	if s.isSQLite() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	result := &FlowDedupResult{}
	identityList := strings.Join(flowIdentityColumns, ", ")

	err := s.runWithLockRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			type identityGroup struct {
				Device        string
				Basis         string
				FromValue     string
				ToValue       string
				Proto         string
				DestPort      int
				SrcEndpointID int64
				DstEndpointID int64
				ViewKind      string
			}
			var groups []identityGroup
			err := tx.Model(&models.Flow{}).
				Select(identityList).
				Group(identityList).
				Having("COUNT(*) > 1").
				Scan(&groups).Error
			if err != nil {
				return fmt.Errorf("find duplicate flow groups: %w", err)
			}

			result.DuplicateGroups = 0
			result.RowsMerged = 0
			for _, group := range groups {
				var rows []*models.Flow
				err := tx.
					Where("device = ? AND basis = ? AND from_value = ? AND to_value = ?",
						group.Device, group.Basis, group.FromValue, group.ToValue).
					Where("proto = ? AND dest_port = ? AND src_endpoint_id = ? AND dst_endpoint_id = ? AND view_kind = ?",
						group.Proto, group.DestPort, group.SrcEndpointID, group.DstEndpointID, group.ViewKind).
					Order("id DESC").
					Find(&rows).Error
				if err != nil {
					return fmt.Errorf("load duplicate flow rows: %w", err)
				}
				if len(rows) < 2 {
					continue
				}

				keep := rows[0]
				topRules := keep.GetTopRules()
				if topRules == nil {
					topRules = make(map[string]int64)
				}
				topApps := keep.GetTopApps()
				if topApps == nil {
					topApps = make(map[string]int64)
				}
				dropIDs := make([]int64, 0, len(rows)-1)
				for _, other := range rows[1:] {
					keep.CountOpen += other.CountOpen
					keep.CountClose += other.CountClose
					keep.BytesSrcToDst += other.BytesSrcToDst
					keep.BytesDstToSrc += other.BytesDstToSrc
					keep.DurationTotalS += other.DurationTotalS
					if other.FirstSeen != nil && (keep.FirstSeen == nil || other.FirstSeen.Before(*keep.FirstSeen)) {
						keep.FirstSeen = other.FirstSeen
					}
					if other.LastSeen != nil && (keep.LastSeen == nil || other.LastSeen.After(*keep.LastSeen)) {
						keep.LastSeen = other.LastSeen
					}
					for rule, count := range other.GetTopRules() {
						topRules[rule] += count
					}
					for app, count := range other.GetTopApps() {
						topApps[app] += count
					}
					dropIDs = append(dropIDs, other.ID)
				}
				keep.SetTopRules(topRules)
				keep.SetTopApps(topApps)

				err = tx.Model(keep).Updates(map[string]any{
					"count_open":       keep.CountOpen,
					"count_close":      keep.CountClose,
					"bytes_src_to_dst": keep.BytesSrcToDst,
					"bytes_dst_to_src": keep.BytesDstToSrc,
					"duration_total_s": keep.DurationTotalS,
					"first_seen":       keep.FirstSeen,
					"last_seen":        keep.LastSeen,
					"top_rules":        keep.TopRules,
					"top_apps":         keep.TopApps,
				}).Error
				if err != nil {
					return fmt.Errorf("merge flow group: %w", err)
				}
				if err := tx.Where("id IN ?", dropIDs).Delete(&models.Flow{}).Error; err != nil {
					return fmt.Errorf("remove merged flow rows: %w", err)
				}

				result.DuplicateGroups++
				result.RowsMerged += int64(len(dropIDs))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	indexSQL := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS ux_flows_identity ON flows (%s)", identityList)
	if err := s.db.WithContext(ctx).Exec(indexSQL).Error; err != nil {
		return nil, fmt.Errorf("create flow identity index: %w", err)
	}
	return result, nil
}
