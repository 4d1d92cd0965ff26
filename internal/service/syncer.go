package service

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/vipul43/ledger-sync/internal/models"
	"github.com/vipul43/ledger-sync/internal/xero"
)

const (
	DefaultPageSize   = 100
	DefaultBatchPages = 10
)

// Fetcher issues one API request for a resource.
type Fetcher interface {
	Fetch(ctx context.Context, resource string, params url.Values) (xero.Response, error)
}

// Result is the outcome of syncing one entity.
type Result struct {
	Entity  string
	Mode    models.SyncMode
	Records int
}

type SyncerConfig struct {
	PageSize int
	// BatchPages is the number of pages buffered before a commit.
	BatchPages    int
	VerifyCommits bool
}

// EntitySyncer walks one entity's remote collection and commits it in batches.
type EntitySyncer struct {
	fetcher     Fetcher
	store       BatchStore
	checkpoints CheckpointStore
	policy      *Policy
	cfg         SyncerConfig
	now         func() time.Time
}

func NewEntitySyncer(fetcher Fetcher, store BatchStore, checkpoints CheckpointStore, policy *Policy, cfg SyncerConfig) *EntitySyncer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BatchPages <= 0 {
		cfg.BatchPages = DefaultBatchPages
	}
	return &EntitySyncer{
		fetcher:     fetcher,
		store:       store,
		checkpoints: checkpoints,
		policy:      policy,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Sync runs one entity to completion. On error the checkpoint is marked failed
// and keeps the last committed position.
func (s *EntitySyncer) Sync(ctx context.Context, entity Entity) (Result, error) {
	plan, err := s.policy.Begin(ctx, entity)
	if err != nil {
		return Result{Entity: entity.Name}, fmt.Errorf("failed to plan %s sync: %w", entity.Name, err)
	}

	result := Result{Entity: entity.Name, Mode: plan.Mode}
	records, err := s.walk(ctx, entity, plan)
	result.Records = records
	if err != nil {
		s.policy.Fail(ctx, entity, err)
		return result, err
	}

	if err := s.policy.Complete(ctx, entity, plan); err != nil {
		return result, err
	}

	log.Printf("Completed %s %s sync: %d records", result.Mode, entity.Name, result.Records)
	return result, nil
}

func (s *EntitySyncer) walk(ctx context.Context, entity Entity, plan Plan) (int, error) {
	pager := s.pager(entity, plan)
	committer := NewBatchCommitter(entity, s.store, s.checkpoints, s.cfg.BatchPages*s.cfg.PageSize, s.cfg.VerifyCommits)

	for {
		params := pager.Params()
		resp, err := s.fetcher.Fetch(ctx, entity.Resource, params)
		if err != nil {
			return committer.Committed(), err
		}

		raw, err := resp.Records(entity.Resource)
		if err != nil {
			return committer.Committed(), fmt.Errorf("%w: %s: malformed response: %v", xero.ErrRequestFailed, entity.Resource, err)
		}

		records, maxKey := entity.decodePage(raw, s.now())
		more := pager.Advance(PageResult{Count: len(raw), MaxKey: maxKey})
		log.Printf("Fetched %d %s (%s)", len(raw), entity.Name, describe(params))

		if len(raw) > 0 {
			committer.Ingest(records, pager.Position())
		}
		if err := committer.FlushIfFull(ctx); err != nil {
			return committer.Committed(), err
		}
		if !more {
			break
		}
	}

	if err := committer.FlushRemainder(ctx); err != nil {
		return committer.Committed(), err
	}
	return committer.Committed(), nil
}

func (s *EntitySyncer) pager(entity Entity, plan Plan) Pager {
	switch entity.Pagination {
	case PaginatePages:
		base := url.Values{}
		if plan.ModifiedSince != nil {
			base.Set("where", xero.WhereModifiedSince(*plan.ModifiedSince))
		}
		return newPagePager(plan.Position, s.cfg.PageSize, entity.MaxPages, base)
	case PaginateOffset:
		return newOffsetPager(plan.Position)
	default:
		return &singlePager{}
	}
}

func describe(params url.Values) string {
	switch {
	case params.Has("page"):
		return "page " + params.Get("page")
	case params.Has("offset"):
		return "offset " + params.Get("offset")
	default:
		return "all"
	}
}
