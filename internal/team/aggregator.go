// Package team computes per-user statistics over the referral forest.
// Traversal is iterative with an explicit queue and a visited set; the
// denormalized counters on the user row are a cache refreshed after
// every new attachment, never the source of truth.
package team

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/referral"
)

type Stats struct {
	TeamSize        int `json:"teamSize"`
	DirectReferrals int `json:"directReferrals"`
	TeamDepth       int `json:"teamDepth"`
}

// Member is one row of a leveled team listing.
type Member struct {
	User     models.User `json:"user"`
	Level    int         `json:"level"`
	IsDirect bool        `json:"isDirectReferral"`
}

// TreeNode is the bounded-depth display tree.
type TreeNode struct {
	User    models.User `json:"user"`
	Level   int         `json:"level"`
	SubTeam []*TreeNode `json:"subTeam,omitempty"`
}

type Aggregator struct {
	db       *gorm.DB
	graph    *referral.Graph
	cache    *Cache
	maxDepth int
}

func NewAggregator(db *gorm.DB, graph *referral.Graph, maxDepth int) *Aggregator {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Aggregator{db: db, graph: graph, cache: NewCache(), maxDepth: maxDepth}
}

// Walk visits every descendant of userID in breadth-first order, up to
// maxLevel levels deep, calling fn for each. fn returning false stops
// the walk. The visited set is a defensive guard: the forest is
// expected to be acyclic, but a corrupt edge must not hang a request.
func (a *Aggregator) Walk(ctx context.Context, userID string, maxLevel int, fn func(Member) bool) error {
	type entry struct {
		id    string
		level int
	}
	queue := []entry{{id: userID, level: 0}}
	visited := map[string]bool{userID: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if maxLevel > 0 && cur.level >= maxLevel {
			continue
		}

		children, err := a.graph.Children(ctx, cur.id)
		if err != nil {
			return err
		}
		for _, child := range children {
			if visited[child.ID] {
				return fmt.Errorf("user %s: %w", child.ID, apperrors.ErrCycleDetected)
			}
			visited[child.ID] = true

			m := Member{User: child, Level: cur.level + 1, IsDirect: cur.level == 0}
			if !fn(m) {
				return nil
			}
			queue = append(queue, entry{id: child.ID, level: cur.level + 1})
		}
	}
	return nil
}

// Stats computes teamSize, directReferrals and teamDepth by unbounded
// traversal. Sum and max commute over children, so the result does not
// depend on visit order.
func (a *Aggregator) Stats(ctx context.Context, userID string) (Stats, error) {
	if s, ok := a.cache.Get(userID); ok {
		return s, nil
	}

	var s Stats
	err := a.Walk(ctx, userID, 0, func(m Member) bool {
		s.TeamSize++
		if m.IsDirect {
			s.DirectReferrals++
		}
		if m.Level > s.TeamDepth {
			s.TeamDepth = m.Level
		}
		return true
	})
	if err != nil {
		return Stats{}, err
	}

	a.cache.Put(userID, s)
	return s, nil
}

// Tree builds the bounded-depth display tree. depth is clamped to the
// configured maximum so a pathological chain cannot blow up a request.
func (a *Aggregator) Tree(ctx context.Context, userID string, depth int) (*TreeNode, error) {
	if depth <= 0 || depth > a.maxDepth {
		depth = a.maxDepth
	}

	var root models.User
	if err := a.db.WithContext(ctx).First(&root, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	nodes := map[string]*TreeNode{userID: {User: root, Level: 0}}
	err := a.Walk(ctx, userID, depth, func(m Member) bool {
		node := &TreeNode{User: m.User, Level: m.Level}
		nodes[m.User.ID] = node
		if m.User.ReferredBy != nil {
			if parent, ok := nodes[*m.User.ReferredBy]; ok {
				parent.SubTeam = append(parent.SubTeam, node)
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return nodes[userID], nil
}

// LeveledList returns the full team flattened and grouped by level.
func (a *Aggregator) LeveledList(ctx context.Context, userID string) ([]Member, map[int][]Member, error) {
	var list []Member
	err := a.Walk(ctx, userID, a.maxDepth, func(m Member) bool {
		list = append(list, m)
		return true
	})
	if err != nil {
		return nil, nil, err
	}

	byLevel := make(map[int][]Member)
	for _, m := range list {
		byLevel[m.Level] = append(byLevel[m.Level], m)
	}
	return list, byLevel, nil
}

// Refresh recomputes a user's stats and writes the denormalized
// counters back to the user row.
func (a *Aggregator) Refresh(ctx context.Context, userID string) (Stats, error) {
	a.cache.Invalidate(userID)
	s, err := a.Stats(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	err = a.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"direct_referrals": s.DirectReferrals,
			"team_size":        s.TeamSize,
			"team_depth":       s.TeamDepth,
			"referral_count":   s.DirectReferrals,
			"referral_level":   referral.Level(s.DirectReferrals),
		}).Error
	if err != nil {
		return Stats{}, fmt.Errorf("write team stats: %w", err)
	}
	return s, nil
}

// RefreshUpline refreshes every ancestor of userID up to the root. The
// walk is bounded: a chain deeper than the configured maximum is logged
// and abandoned rather than failed, since the counters self-heal on the
// next mutation touching that lineage.
func (a *Aggregator) RefreshUpline(ctx context.Context, userID string) error {
	visited := map[string]bool{userID: true}
	current := userID

	for hops := 0; ; hops++ {
		if hops >= a.maxDepth {
			logger.Log.Warn("upline refresh exceeded depth bound, abandoning",
				zap.String("user_id", userID),
				zap.Int("max_depth", a.maxDepth))
			return nil
		}

		parent, err := a.graph.Parent(ctx, current)
		if err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		if visited[parent.ID] {
			return fmt.Errorf("user %s: %w", parent.ID, apperrors.ErrCycleDetected)
		}
		visited[parent.ID] = true

		if _, err := a.Refresh(ctx, parent.ID); err != nil {
			return err
		}
		current = parent.ID
	}
}

// Invalidate drops cached stats for the given users.
func (a *Aggregator) Invalidate(userIDs ...string) {
	a.cache.Invalidate(userIDs...)
}
