package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	appinv "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultDriftTolerance is the absolute stock difference tolerated before a push is queued
	DefaultDriftTolerance int64 = 0

	reconcileAllPageSize = 200
	ownerScanPageSize    = 500
	reconcilerActor      = "reconciler"
)

// ReconcilerService merges marketplace records into canonical products and compares what
// marketplaces report against the ledger. It never writes stock movements of its own except
// the optional opening balance of a unit it creates.
type ReconcilerService struct {
	productRepo        integration.CanonicalProductRepository
	stockUnitRepo      inventory.StockUnitRepository
	txScope            appinv.TransactionScope
	registry           integration.AdapterRegistry
	matcher            *Matcher
	enqueuer           *SyncEnqueuer
	eventPublisher     shared.EventPublisher
	metrics            *telemetry.StockMetrics
	logger             *zap.Logger
	driftTolerance     int64
	importInitialStock bool
	defaultOwnerID     uuid.UUID
	mergeGuard         MergeGuard
}

// DefaultMergeWait is how long a merge waits for another merge of the same seller account
const DefaultMergeWait = 30 * time.Second

// MergeGuard serializes merges of one seller account. Matching reads the catalog before it
// writes, so two overlapping merges could each create a product for the same barcode.
type MergeGuard interface {
	Lock(ctx context.Context, ownerID uuid.UUID) (func(), error)
}

// NewReconcilerService creates a new ReconcilerService
func NewReconcilerService(
	productRepo integration.CanonicalProductRepository,
	stockUnitRepo inventory.StockUnitRepository,
	txScope appinv.TransactionScope,
	registry integration.AdapterRegistry,
	matcher *Matcher,
	enqueuer *SyncEnqueuer,
	logger *zap.Logger,
) *ReconcilerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if matcher == nil {
		matcher = NewMatcher(DefaultFuzzyThreshold)
	}
	if enqueuer == nil {
		enqueuer = NewSyncEnqueuer(logger)
	}
	return &ReconcilerService{
		productRepo:    productRepo,
		stockUnitRepo:  stockUnitRepo,
		txScope:        txScope,
		registry:       registry,
		matcher:        matcher,
		enqueuer:       enqueuer,
		logger:         logger,
		driftTolerance: DefaultDriftTolerance,
		mergeGuard:     appinv.NewKeyedUnitLocker(DefaultMergeWait),
	}
}

// SetMergeGuard replaces the in-process merge guard, typically with one shared by the fleet
func (s *ReconcilerService) SetMergeGuard(guard MergeGuard) {
	if guard != nil {
		s.mergeGuard = guard
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *ReconcilerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetStockMetrics sets the stock metrics collector
func (s *ReconcilerService) SetStockMetrics(m *telemetry.StockMetrics) {
	s.metrics = m
}

// SetDriftTolerance sets the tolerated absolute difference between reported and ledger stock
func (s *ReconcilerService) SetDriftTolerance(tolerance int64) {
	if tolerance >= 0 {
		s.driftTolerance = tolerance
	}
}

// SetImportInitialStock makes units created by a merge open with the newest reported stock
func (s *ReconcilerService) SetImportInitialStock(enabled bool) {
	s.importInitialStock = enabled
}

// SetDefaultOwner sets the seller account that pulled records are merged into
func (s *ReconcilerService) SetDefaultOwner(ownerID uuid.UUID) {
	s.defaultOwnerID = ownerID
}

// ---------------------------------------------------------------------------
// Merge
// ---------------------------------------------------------------------------

// mergeCandidate is one canonical product in the working set of a merge
type mergeCandidate struct {
	product   *integration.CanonicalProduct
	unit      *inventory.StockUnit // only set when the merge creates the unit
	created   bool
	touched   bool
	sources   []integration.SourceKey
	matchedBy []integration.MatchRule
	changed   integration.FieldSet
}

// mergeState is the working set of a merge: every product loaded or created so far
type mergeState struct {
	ownerID     uuid.UUID
	byID        map[uuid.UUID]*mergeCandidate
	order       []uuid.UUID
	owned       []integration.CanonicalProduct
	ownedLoaded bool
}

func (st *mergeState) adopt(p *integration.CanonicalProduct) *mergeCandidate {
	if c, ok := st.byID[p.ID]; ok {
		return c
	}
	c := &mergeCandidate{product: p}
	st.byID[p.ID] = c
	st.order = append(st.order, p.ID)
	return c
}

func (st *mergeState) each(fn func(c *mergeCandidate) bool) *mergeCandidate {
	for _, id := range st.order {
		if c := st.byID[id]; fn(c) {
			return c
		}
	}
	return nil
}

// MergeIncoming groups marketplace records into canonical products. Records are matched by
// existing source record, explicit link id, normalized barcode, normalized SKU and finally by
// fuzzy name and brand similarity. A record whose source is already linked to one product is
// never moved by a merge; a key pointing elsewhere is reported as a link conflict.
func (s *ReconcilerService) MergeIncoming(ctx context.Context, ownerID uuid.UUID, snapshots []integration.PlatformSnapshot) (*MergeResult, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Owner ID cannot be empty")
	}
	unlock, err := s.mergeGuard.Lock(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &MergeResult{
		Groups:        []MergeGroup{},
		Conflicts:     []integration.AttributeConflict{},
		LinkConflicts: []integration.LinkConflict{},
		Rejected:      []RejectedSnapshot{},
	}

	valid := make([]integration.PlatformSnapshot, 0, len(snapshots))
	for i := range snapshots {
		if err := snapshots[i].Validate(); err != nil {
			result.Rejected = append(result.Rejected, RejectedSnapshot{
				Platform: string(snapshots[i].Platform),
				RemoteID: snapshots[i].RemoteID,
				Reason:   err.Error(),
			})
			continue
		}
		valid = append(valid, snapshots[i])
	}
	// oldest first so the newest snapshot of a record is the one that sticks
	sort.SliceStable(valid, func(i, j int) bool {
		if !valid[i].FetchedAt.Equal(valid[j].FetchedAt) {
			return valid[i].FetchedAt.Before(valid[j].FetchedAt)
		}
		if valid[i].Platform != valid[j].Platform {
			return valid[i].Platform < valid[j].Platform
		}
		return valid[i].RemoteID < valid[j].RemoteID
	})

	st := &mergeState{ownerID: ownerID, byID: make(map[uuid.UUID]*mergeCandidate)}
	for i := range valid {
		snap := &valid[i]
		c, rule, conflict, err := s.locate(ctx, st, snap)
		if err != nil {
			var de *shared.DomainError
			if errors.As(err, &de) && de.Code == shared.CodeInvalidInput {
				result.Rejected = append(result.Rejected, RejectedSnapshot{
					Platform: string(snap.Platform),
					RemoteID: snap.RemoteID,
					Reason:   de.Message,
				})
				continue
			}
			return nil, err
		}
		if conflict != nil {
			result.LinkConflicts = append(result.LinkConflicts, *conflict)
		}
		c.product.Observe(snap)
		c.touched = true
		c.sources = append(c.sources, snap.Key())
		c.matchedBy = append(c.matchedBy, rule)
	}

	for _, id := range st.order {
		c := st.byID[id]
		if !c.touched {
			continue
		}
		changed, conflicts := c.product.ResolveAttributes()
		c.changed = changed
		c.product.Barcode = s.matcher.NormalizeBarcode(c.product.Barcode)
		c.product.SKU = s.matcher.NormalizeSKU(c.product.SKU)
		result.Conflicts = append(result.Conflicts, conflicts...)
	}

	err = s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		for _, id := range st.order {
			c := st.byID[id]
			if !c.touched {
				continue
			}
			if c.unit != nil {
				if err := s.createUnit(ctx, repos, c); err != nil {
					return err
				}
			}
			if err := repos.ProductRepo().Save(ctx, c.product); err != nil {
				return fmt.Errorf("save canonical product %s: %w", c.product.ID, err)
			}
			if c.created || len(c.changed) == 0 {
				continue
			}
			n, err := s.enqueuer.EnqueueForProduct(ctx, repos.SyncTaskRepo(), c.product, c.product.SourcesNeedingPush(c.changed), integration.OriginMerge)
			if err != nil {
				return err
			}
			result.TasksEnqueued += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range st.order {
		c := st.byID[id]
		if !c.touched {
			continue
		}
		if c.created {
			result.Created++
		} else {
			result.Updated++
		}
		result.Groups = append(result.Groups, MergeGroup{
			CanonicalProductID: c.product.ID,
			StockUnitID:        c.product.StockUnitID,
			Created:            c.created,
			Sources:            c.sources,
			MatchedBy:          c.matchedBy,
			ChangedFields:      c.changed.Strings(),
		})
		if c.unit != nil {
			s.publish(ctx, c.unit.GetDomainEvents()...)
			c.unit.ClearDomainEvents()
		}
	}
	for _, lc := range result.LinkConflicts {
		s.logger.Warn("Link conflict detected",
			zap.String("platform", lc.Key.Platform.String()),
			zap.String("remote_id", lc.Key.RemoteID),
			zap.String("linked_product_id", lc.LinkedProductID.String()),
			zap.String("matched_product_id", lc.MatchedProductID.String()),
			zap.String("matched_by", string(lc.MatchedBy)),
		)
		s.publish(ctx, integration.NewLinkConflictDetectedEvent(ownerID, lc))
	}

	s.logger.Info("Marketplace records merged",
		zap.String("owner_id", ownerID.String()),
		zap.Int("records", len(snapshots)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("attribute_conflicts", len(result.Conflicts)),
		zap.Int("link_conflicts", len(result.LinkConflicts)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("tasks_enqueued", result.TasksEnqueued),
	)
	return result, nil
}

// locate finds or creates the product a snapshot belongs to
func (s *ReconcilerService) locate(ctx context.Context, st *mergeState, snap *integration.PlatformSnapshot) (*mergeCandidate, integration.MatchRule, *integration.LinkConflict, error) {
	linked, err := s.findLinked(ctx, st, snap.Key())
	if err != nil {
		return nil, "", nil, err
	}
	matched, rule, err := s.matchByKeys(ctx, st, snap)
	if err != nil {
		return nil, "", nil, err
	}

	if linked != nil {
		var conflict *integration.LinkConflict
		if matched != nil && matched.product.ID != linked.product.ID && rule != integration.MatchByFuzzy {
			conflict = &integration.LinkConflict{
				Key:              snap.Key(),
				LinkedProductID:  linked.product.ID,
				MatchedProductID: matched.product.ID,
				MatchedBy:        rule,
			}
		}
		return linked, integration.MatchBySource, conflict, nil
	}
	if matched != nil {
		return matched, rule, nil, nil
	}
	c, rule, err := s.newCandidate(ctx, st, snap)
	return c, rule, nil, err
}

func (s *ReconcilerService) findLinked(ctx context.Context, st *mergeState, key integration.SourceKey) (*mergeCandidate, error) {
	if c := st.each(func(c *mergeCandidate) bool {
		_, ok := c.product.Source(key)
		return ok
	}); c != nil {
		return c, nil
	}
	p, err := s.productRepo.FindBySourceKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if p.OwnerID != st.ownerID {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Source record belongs to another seller account")
	}
	return st.adopt(p), nil
}

func (s *ReconcilerService) matchByKeys(ctx context.Context, st *mergeState, snap *integration.PlatformSnapshot) (*mergeCandidate, integration.MatchRule, error) {
	if linkID := s.matcher.NormalizeLinkID(snap.LinkID); linkID != "" {
		c, err := s.matchLinkID(ctx, st, linkID)
		if c != nil || err != nil {
			return c, integration.MatchByLinkID, err
		}
	}
	if barcode := s.matcher.NormalizeBarcode(snap.Barcode); barcode != "" {
		c, err := s.matchIdentifier(ctx, st, barcode,
			func(p *integration.CanonicalProduct) string { return s.matcher.NormalizeBarcode(p.Barcode) },
			func(r *integration.SourceRecord) string { return s.matcher.NormalizeBarcode(r.Barcode) },
			s.productRepo.FindByBarcode,
		)
		if c != nil || err != nil {
			return c, integration.MatchByBarcode, err
		}
	}
	if sku := s.matcher.NormalizeSKU(snap.SKU); sku != "" {
		c, err := s.matchIdentifier(ctx, st, sku,
			func(p *integration.CanonicalProduct) string { return s.matcher.NormalizeSKU(p.SKU) },
			func(r *integration.SourceRecord) string { return s.matcher.NormalizeSKU(r.SKU) },
			s.productRepo.FindBySKU,
		)
		if c != nil || err != nil {
			return c, integration.MatchBySKU, err
		}
	}
	if strings.TrimSpace(snap.Name) != "" {
		c, err := s.matchFuzzy(ctx, st, snap)
		if c != nil || err != nil {
			return c, integration.MatchByFuzzy, err
		}
	}
	return nil, integration.MatchNone, nil
}

func (s *ReconcilerService) matchLinkID(ctx context.Context, st *mergeState, linkID string) (*mergeCandidate, error) {
	if c := st.each(func(c *mergeCandidate) bool {
		if c.product.ID.String() == linkID {
			return true
		}
		for i := range c.product.SourceRecords {
			if s.matcher.NormalizeLinkID(c.product.SourceRecords[i].LinkID) == linkID {
				return true
			}
		}
		return false
	}); c != nil {
		return c, nil
	}
	if id, err := uuid.Parse(linkID); err == nil {
		p, err := s.productRepo.FindByID(ctx, id)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if p != nil && p.OwnerID == st.ownerID {
			return st.adopt(p), nil
		}
	}
	p, err := s.productRepo.FindByLinkID(ctx, st.ownerID, linkID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return st.adopt(p), nil
}

func (s *ReconcilerService) matchIdentifier(
	ctx context.Context,
	st *mergeState,
	value string,
	productValue func(*integration.CanonicalProduct) string,
	sourceValue func(*integration.SourceRecord) string,
	find func(ctx context.Context, ownerID uuid.UUID, value string) (*integration.CanonicalProduct, error),
) (*mergeCandidate, error) {
	if c := st.each(func(c *mergeCandidate) bool {
		if productValue(c.product) == value {
			return true
		}
		for i := range c.product.SourceRecords {
			if sourceValue(&c.product.SourceRecords[i]) == value {
				return true
			}
		}
		return false
	}); c != nil {
		return c, nil
	}
	p, err := find(ctx, st.ownerID, value)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return st.adopt(p), nil
}

// matchFuzzy picks the most similar product by brand and title. A product that already lists
// a different record on the same marketplace is never a fuzzy candidate.
func (s *ReconcilerService) matchFuzzy(ctx context.Context, st *mergeState, snap *integration.PlatformSnapshot) (*mergeCandidate, error) {
	if err := s.loadOwned(ctx, st); err != nil {
		return nil, err
	}
	var (
		best      *integration.CanonicalProduct
		bestScore float64
	)
	consider := func(p *integration.CanonicalProduct) {
		if src, ok := p.SourceForPlatform(snap.Platform); ok && src.RemoteID != snap.RemoteID {
			return
		}
		score := s.matcher.NameBrandScore(snap.Name, snap.Brand, p.Name, p.Brand)
		for i := range p.SourceRecords {
			src := &p.SourceRecords[i]
			if !src.Live {
				continue
			}
			if sc := s.matcher.NameBrandScore(snap.Name, snap.Brand, src.Name, src.Brand); sc > score {
				score = sc
			}
		}
		if score >= s.matcher.Threshold() && score > bestScore {
			best, bestScore = p, score
		}
	}
	for _, id := range st.order {
		consider(st.byID[id].product)
	}
	for i := range st.owned {
		if _, ok := st.byID[st.owned[i].ID]; ok {
			continue
		}
		consider(&st.owned[i])
	}
	if best == nil {
		return nil, nil
	}
	if c, ok := st.byID[best.ID]; ok {
		return c, nil
	}
	p := *best
	return st.adopt(&p), nil
}

// loadOwned loads the seller's existing products once per merge for fuzzy matching
func (s *ReconcilerService) loadOwned(ctx context.Context, st *mergeState) error {
	if st.ownedLoaded {
		return nil
	}
	for offset := 0; ; offset += ownerScanPageSize {
		page, err := s.productRepo.FindByOwner(ctx, st.ownerID, ownerScanPageSize, offset)
		if err != nil {
			return err
		}
		st.owned = append(st.owned, page...)
		if len(page) < ownerScanPageSize {
			break
		}
	}
	st.ownedLoaded = true
	return nil
}

// newCandidate creates a product for an unmatched record. A stock unit already registered
// under the record's SKU is reused so a product is never split from its stock.
func (s *ReconcilerService) newCandidate(ctx context.Context, st *mergeState, snap *integration.PlatformSnapshot) (*mergeCandidate, integration.MatchRule, error) {
	sku := strings.TrimSpace(snap.SKU)
	if sku == "" {
		sku = fmt.Sprintf("%s-%s", snap.Platform, strings.TrimSpace(snap.RemoteID))
	}

	unit, err := s.stockUnitRepo.FindBySKU(ctx, st.ownerID, sku, "")
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, "", err
	}
	if unit != nil {
		existing, err := s.productRepo.FindByStockUnit(ctx, unit.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, "", err
		}
		if existing != nil {
			return st.adopt(existing), integration.MatchBySKU, nil
		}
	}

	var created *inventory.StockUnit
	if unit == nil {
		created, err = inventory.NewStockUnit(st.ownerID, sku, "", 0)
		if err != nil {
			return nil, "", shared.NewDomainError(shared.CodeInvalidInput, err.Error())
		}
		unit = created
	}
	p, err := integration.NewCanonicalProduct(st.ownerID, unit.ID, snap.Name)
	if err != nil {
		return nil, "", shared.NewDomainError(shared.CodeInvalidInput, err.Error())
	}
	c := st.adopt(p)
	c.created = true
	c.unit = created
	return c, integration.MatchNone, nil
}

// createUnit persists a unit created by the merge, optionally with its opening balance
func (s *ReconcilerService) createUnit(ctx context.Context, repos appinv.TransactionalRepositories, c *mergeCandidate) error {
	if err := repos.StockUnitRepo().Create(ctx, c.unit); err != nil {
		return fmt.Errorf("create stock unit for %s: %w", c.product.ID, err)
	}
	if !s.importInitialStock {
		return nil
	}
	newest := newestSource(c.product)
	if newest == nil || newest.ReportedStock <= 0 {
		return nil
	}
	entry, err := c.unit.Append(newest.ReportedStock, inventory.ReasonPlatformImport, reconcilerActor, map[string]string{
		"platform":             newest.Platform.String(),
		"remote_id":            newest.RemoteID,
		"canonical_product_id": c.product.ID.String(),
	})
	if err != nil {
		return err
	}
	if err := repos.LedgerRepo().Append(ctx, entry); err != nil {
		return err
	}
	return repos.StockUnitRepo().SaveWithLock(ctx, c.unit)
}

func newestSource(p *integration.CanonicalProduct) *integration.SourceRecord {
	var newest *integration.SourceRecord
	for i := range p.SourceRecords {
		src := &p.SourceRecords[i]
		if !src.Live {
			continue
		}
		if newest == nil || src.LastSeenAt.After(newest.LastSeenAt) {
			newest = src
		}
	}
	return newest
}

// ---------------------------------------------------------------------------
// Stock reconciliation
// ---------------------------------------------------------------------------

// ReconcileStock compares every live listing of a product against the ledger and queues a
// push of the ledger's on-hand quantity wherever the drift exceeds the tolerance.
// The ledger is only read.
func (s *ReconcilerService) ReconcileStock(ctx context.Context, productID uuid.UUID) (*ReconcileResult, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	unit, err := s.stockUnitRepo.FindByID(ctx, product.StockUnitID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		CanonicalProductID: product.ID,
		StockUnitID:        unit.ID,
		LedgerOnHand:       unit.OnHand,
		Drifts:             []StockDrift{},
	}
	switch {
	case unit.Retired:
		result.Skipped, result.SkipReason = true, "stock unit is retired"
		return result, nil
	case unit.LedgerSequence == 0:
		// pushing zero over a listing nobody ever counted would wipe real stock
		result.Skipped, result.SkipReason = true, "stock unit has no ledger history"
		return result, nil
	}

	var events []shared.DomainEvent
	err = s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		for _, src := range product.LiveSources() {
			drift := src.ReportedStock - unit.OnHand
			if drift < 0 {
				drift = -drift
			}
			if drift <= s.driftTolerance {
				result.InSync++
				continue
			}
			task, err := integration.NewSyncTask(product.OwnerID, product.ID, src.Platform, integration.NewFieldSet(integration.FieldStock), integration.OriginReconcileStock)
			if err != nil {
				return err
			}
			task.WithTargetStock(unit.OnHand)
			queued, err := s.enqueuer.Enqueue(ctx, repos.SyncTaskRepo(), task)
			if err != nil {
				return err
			}
			result.Drifts = append(result.Drifts, StockDrift{
				Platform:      src.Platform,
				RemoteID:      src.RemoteID,
				ReportedStock: src.ReportedStock,
				LedgerStock:   unit.OnHand,
				SyncTaskID:    queued.ID,
			})
			events = append(events, integration.NewStockDriftDetectedEvent(product, src, unit.OnHand))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, d := range result.Drifts {
		s.logger.Warn("Stock drift detected",
			zap.String("canonical_product_id", product.ID.String()),
			zap.String("stock_unit_id", unit.ID.String()),
			zap.String("platform", d.Platform.String()),
			zap.String("remote_id", d.RemoteID),
			zap.Int64("reported_stock", d.ReportedStock),
			zap.Int64("ledger_stock", d.LedgerStock),
		)
		if s.metrics != nil {
			s.metrics.RecordDrift(ctx, d.Platform.String())
		}
	}
	s.publish(ctx, events...)
	return result, nil
}

// ReconcileAll reconciles every canonical product. A failing product is logged and counted;
// the pass continues with the next one.
func (s *ReconcilerService) ReconcileAll(ctx context.Context) (*ReconcileAllResult, error) {
	start := time.Now()
	result := &ReconcileAllResult{}
	for offset := 0; ; offset += reconcileAllPageSize {
		ids, err := s.productRepo.ListIDs(ctx, reconcileAllPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s.reconcileInto(ctx, id, result)
		}
		if len(ids) < reconcileAllPageSize {
			break
		}
	}
	result.Duration = time.Since(start)
	s.logger.Info("Stock reconciliation completed",
		zap.Int("products", result.Products),
		zap.Int("drifted", result.Drifted),
		zap.Int("tasks", result.Tasks),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (s *ReconcilerService) reconcileInto(ctx context.Context, id uuid.UUID, result *ReconcileAllResult) {
	result.Products++
	r, err := s.ReconcileStock(ctx, id)
	if err != nil {
		result.Failed++
		s.logger.Error("Failed to reconcile product stock",
			zap.String("canonical_product_id", id.String()),
			zap.Error(err),
		)
		return
	}
	if len(r.Drifts) > 0 {
		result.Drifted++
		result.Tasks += len(r.Drifts)
	}
}

// PullAndMerge fetches every enabled marketplace, merges the combined batch into the default
// seller account and reconciles the stock of every product the merge touched.
// A marketplace that fails to answer is reported and skipped.
func (s *ReconcilerService) PullAndMerge(ctx context.Context) (*PullResult, error) {
	if s.registry == nil {
		return nil, integration.ErrPlatformNotConfigured
	}
	if s.defaultOwnerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "No default owner configured for platform pulls")
	}

	result := &PullResult{Platforms: []PlatformPullResult{}}
	var batch []integration.PlatformSnapshot
	for _, adapter := range s.registry.All() {
		pr := PlatformPullResult{Platform: adapter.Platform()}
		snaps, err := adapter.FetchProducts(ctx)
		if err != nil {
			pr.Error = err.Error()
			s.logger.Error("Failed to fetch platform products",
				zap.String("platform", adapter.Platform().String()),
				zap.Error(err),
			)
		} else {
			pr.Fetched = len(snaps)
			batch = append(batch, snaps...)
		}
		result.Platforms = append(result.Platforms, pr)
	}
	if len(batch) == 0 {
		return result, nil
	}

	merge, err := s.MergeIncoming(ctx, s.defaultOwnerID, batch)
	if err != nil {
		return nil, err
	}
	result.Merge = merge

	summary := &ReconcileAllResult{}
	for _, id := range merge.ProductIDs() {
		s.reconcileInto(ctx, id, summary)
	}
	result.Reconciled = summary.Products - summary.Failed
	result.Drifted = summary.Drifted
	return result, nil
}

// ---------------------------------------------------------------------------
// Operator paths
// ---------------------------------------------------------------------------

// RelinkSourceRecord moves a source record to another canonical product. This is the only
// way a record changes products after it was first linked.
func (s *ReconcilerService) RelinkSourceRecord(ctx context.Context, req RelinkRequest) (*RelinkResult, error) {
	code, err := integration.ParsePlatformCode(req.Platform)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, err.Error())
	}
	key := integration.SourceKey{Platform: code, RemoteID: strings.TrimSpace(req.RemoteID)}

	from, err := s.productRepo.FindBySourceKey(ctx, key)
	if err != nil {
		return nil, err
	}
	to, err := s.productRepo.FindByID(ctx, req.TargetProductID)
	if err != nil {
		return nil, err
	}
	if from.ID == to.ID {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Source record is already linked to this product")
	}
	if from.OwnerID != to.OwnerID {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Products belong to different seller accounts")
	}
	if existing, ok := to.SourceForPlatform(code); ok {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Target product already lists %s record %s", code, existing.RemoteID))
	}
	rec, err := from.Detach(key)
	if err != nil {
		return nil, err
	}
	to.Attach(*rec)
	fromChanged, _ := from.ResolveAttributes()
	toChanged, _ := to.ResolveAttributes()
	to.Barcode = s.matcher.NormalizeBarcode(to.Barcode)
	to.SKU = s.matcher.NormalizeSKU(to.SKU)

	tasks := 0
	err = s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		if err := repos.ProductRepo().Save(ctx, from); err != nil {
			return err
		}
		if err := repos.ProductRepo().Save(ctx, to); err != nil {
			return err
		}
		n, err := s.enqueuer.EnqueueForProduct(ctx, repos.SyncTaskRepo(), from, from.SourcesNeedingPush(fromChanged), integration.OriginOperator)
		if err != nil {
			return err
		}
		tasks += n
		need := to.SourcesNeedingPush(toChanged.Union(integration.FieldAttributes, integration.FieldPrice))
		need[code] = need[code].Union(integration.FieldStock)
		n, err = s.enqueuer.EnqueueForProduct(ctx, repos.SyncTaskRepo(), to, need, integration.OriginOperator)
		if err != nil {
			return err
		}
		tasks += n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Source record relinked",
		zap.String("platform", code.String()),
		zap.String("remote_id", key.RemoteID),
		zap.String("from_product_id", from.ID.String()),
		zap.String("to_product_id", to.ID.String()),
		zap.String("actor", req.Actor),
	)
	return &RelinkResult{
		Source:        ToCanonicalProductResponse(from),
		Target:        ToCanonicalProductResponse(to),
		TasksEnqueued: tasks,
	}, nil
}

// GetProduct returns a canonical product with its source records
func (s *ReconcilerService) GetProduct(ctx context.Context, id uuid.UUID) (*CanonicalProductResponse, error) {
	p, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToCanonicalProductResponse(p)
	return &response, nil
}

// ListProducts lists the canonical products of a seller account
func (s *ReconcilerService) ListProducts(ctx context.Context, filter ProductListFilter) ([]CanonicalProductResponse, error) {
	if filter.OwnerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Owner ID cannot be empty")
	}
	limit, offset := pageOffset(filter.Page, filter.PageSize, 20, 100)
	products, err := s.productRepo.FindByOwner(ctx, filter.OwnerID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]CanonicalProductResponse, len(products))
	for i := range products {
		out[i] = ToCanonicalProductResponse(&products[i])
	}
	return out, nil
}

// RequestPush lets an operator push fields of a product to some or all of its live listings.
// A stock push publishes the ledger's current on-hand quantity.
func (s *ReconcilerService) RequestPush(ctx context.Context, productID uuid.UUID, req RequestPushRequest) ([]SyncTaskResponse, error) {
	var fields integration.FieldSet
	for _, f := range req.Fields {
		field := integration.SyncField(strings.ToLower(strings.TrimSpace(f)))
		if !field.IsValid() {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown sync field: "+f)
		}
		fields = fields.Union(field)
	}
	if len(fields) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, integration.ErrInvalidSyncFields.Error())
	}
	wanted := make(map[integration.PlatformCode]bool, len(req.Platforms))
	for _, p := range req.Platforms {
		code, err := integration.ParsePlatformCode(p)
		if err != nil {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, err.Error())
		}
		wanted[code] = true
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	var onHand int64
	if fields.Has(integration.FieldStock) {
		unit, err := s.stockUnitRepo.FindByID(ctx, product.StockUnitID)
		if err != nil {
			return nil, err
		}
		onHand = unit.OnHand
	}

	var queued []integration.SyncTask
	err = s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		for _, src := range product.LiveSources() {
			if len(wanted) > 0 && !wanted[src.Platform] {
				continue
			}
			task, err := integration.NewSyncTask(product.OwnerID, product.ID, src.Platform, fields, integration.OriginOperator)
			if err != nil {
				return err
			}
			if fields.Has(integration.FieldStock) {
				task.WithTargetStock(onHand)
			}
			t, err := s.enqueuer.Enqueue(ctx, repos.SyncTaskRepo(), task)
			if err != nil {
				return err
			}
			queued = append(queued, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Product has no live listing on the requested platforms")
	}

	s.logger.Info("Push requested",
		zap.String("canonical_product_id", product.ID.String()),
		zap.Strings("fields", fields.Strings()),
		zap.Int("tasks", len(queued)),
		zap.String("actor", req.Actor),
	)
	return ToSyncTaskResponses(queued), nil
}

func (s *ReconcilerService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	// Publish events (errors are logged by the event bus, not propagated)
	_ = s.eventPublisher.Publish(ctx, events...)
}
