package member

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/repository"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Resolver maps a remote assignee to a local member id. ok is false when no
// member matches; that is not an error.
type Resolver interface {
	Resolve(ctx context.Context, who Identity) (memberID string, ok bool, err error)
}

// Tier names which rule of the fallback chain matched.
type Tier string

const (
	TierAccountID Tier = "account_id"
	TierUsername  Tier = "username"
	TierFullName  Tier = "full_name"
)

const defaultCacheSize = 1024

// TieredResolver resolves in three steps: the cached account-id mapping,
// a case-insensitive username match against display name or account id,
// then a case-insensitive full-name match that back-fills the account id.
type TieredResolver struct {
	members   repository.Repository[TeamMember]
	cache     *lru.Cache
	cacheSize int
	group     singleflight.Group
	backfill  bool

	mu     sync.Mutex
	loaded bool
}

type TieredOption func(*TieredResolver)

// WithoutBackfill disables writing account ids discovered by full-name match.
func WithoutBackfill() TieredOption {
	return func(r *TieredResolver) { r.backfill = false }
}

// WithCacheSize bounds the account-id cache. Evicted entries are found again
// on the member scan.
func WithCacheSize(n int) TieredOption {
	return func(r *TieredResolver) { r.cacheSize = n }
}

func NewTieredResolver(db *gorm.DB, opts ...TieredOption) (*TieredResolver, error) {
	r := &TieredResolver{
		members:   repository.ProvideStore[TeamMember](db),
		cacheSize: defaultCacheSize,
		backfill:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	cache, err := lru.New(r.cacheSize)
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

func (r *TieredResolver) Resolve(ctx context.Context, who Identity) (string, bool, error) {
	id, tier, err := r.ResolveTier(ctx, who)
	if err != nil || tier == "" {
		return "", false, err
	}
	return id, true, nil
}

// ResolveTier is Resolve plus the matching tier, empty on a miss.
func (r *TieredResolver) ResolveTier(ctx context.Context, who Identity) (string, Tier, error) {
	if who.IsZero() {
		return "", "", nil
	}

	if who.AccountID != "" {
		if err := r.ensureMapping(ctx); err != nil {
			return "", "", err
		}
		if v, ok := r.cache.Get(who.AccountID); ok {
			return v.(string), TierAccountID, nil
		}
	}

	members, err := r.members.Find(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("load team members: %w", err)
	}

	// The cache is bounded, so a miss is not proof the mapping is absent.
	if who.AccountID != "" {
		for _, m := range members {
			if m.JiraAccountID == who.AccountID {
				r.cache.Add(m.JiraAccountID, m.ID)
				return m.ID, TierAccountID, nil
			}
		}
	}

	for _, m := range members {
		if m.Username == "" {
			continue
		}
		if equalFold(m.Username, who.DisplayName) || equalFold(m.Username, who.AccountID) {
			return m.ID, TierUsername, nil
		}
	}

	for _, m := range members {
		if m.Name == "" || !equalFold(m.Name, who.DisplayName) {
			continue
		}
		if r.backfill && who.AccountID != "" && m.JiraAccountID == "" {
			r.backfillAccountID(ctx, m, who.AccountID)
		}
		return m.ID, TierFullName, nil
	}

	return "", "", nil
}

// Invalidate drops the cached account-id mapping; the next Resolve reloads it.
func (r *TieredResolver) Invalidate() {
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()
	r.cache.Purge()
}

func (r *TieredResolver) ensureMapping(ctx context.Context) error {
	r.mu.Lock()
	loaded := r.loaded
	r.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := r.group.Do("mapping", func() (any, error) {
		members, err := r.members.Find(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("load account mapping: %w", err)
		}
		for _, m := range members {
			if m.JiraAccountID != "" {
				r.cache.Add(m.JiraAccountID, m.ID)
			}
		}
		r.mu.Lock()
		r.loaded = true
		r.mu.Unlock()
		zap.L().Debug("account mapping loaded", zap.Int("members", len(members)))
		return nil, nil
	})
	return err
}

func (r *TieredResolver) backfillAccountID(ctx context.Context, m *TeamMember, accountID string) {
	if err := r.members.Update(ctx, m.ID, map[string]any{"jira_account_id": accountID}); err != nil {
		// A failed back-fill only costs a slower match next time.
		zap.L().Warn("failed to back-fill account id",
			zap.String("member_id", m.ID),
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return
	}
	r.cache.Add(accountID, m.ID)
	zap.L().Info("account id back-filled", zap.String("member_id", m.ID), zap.String("account_id", accountID))
}

func equalFold(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// StaticResolver resolves from a fixed account-id map.
type StaticResolver map[string]string

func (s StaticResolver) Resolve(_ context.Context, who Identity) (string, bool, error) {
	id, ok := s[who.AccountID]
	return id, ok, nil
}
