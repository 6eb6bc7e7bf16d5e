// Package ledger persists snapshots, hedges, and trades to a relational
// store via GORM. Every relation is append-only except UpdateTradeStatus,
// the one mutation a venue fill lifecycle requires.
package ledger

import (
	"context"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/johnayoung/delta-hedge-bot/internal/apperrors"
	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
)

// SnapshotRecord is the GORM model backing PositionSnapshot.
type SnapshotRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	PoolAddress string    `gorm:"index;not null"`
	Reserve0    string    `gorm:"type:decimal(30,18);not null"`
	Reserve1    string    `gorm:"type:decimal(30,18);not null"`
	ShortSize   string    `gorm:"type:decimal(30,18);not null"`
	BlockNumber *uint64
	Status      string    `gorm:"not null"`
	Timestamp   time.Time `gorm:"index;not null"`
}

func (SnapshotRecord) TableName() string { return "snapshots" }

// HedgeRecordRow is the GORM model backing HedgeRecord.
type HedgeRecordRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Action       string `gorm:"not null"`
	Size         string `gorm:"type:decimal(30,18);not null"`
	Price        string `gorm:"type:decimal(30,8);not null"`
	DeltaBefore  string `gorm:"type:decimal(30,18);not null"`
	DeltaAfter   string `gorm:"type:decimal(30,18);not null"`
	Leverage     string `gorm:"type:decimal(30,18);not null"`
	Venue        string `gorm:"not null"`
	OrderID      string `gorm:"index"`
	GasCost      *string
	Success      bool `gorm:"index;not null"`
	ErrorMessage string
	Timestamp    time.Time `gorm:"index;not null"`
}

func (HedgeRecordRow) TableName() string { return "hedges" }

// TradeRecord is the GORM model backing Trade.
type TradeRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Symbol      string `gorm:"index;not null"`
	Side        string `gorm:"not null"`
	OrderType   string `gorm:"not null"`
	Size        string `gorm:"type:decimal(30,18);not null"`
	Price       string `gorm:"type:decimal(30,8);not null"`
	OrderID     string `gorm:"uniqueIndex;not null"`
	Status      string `gorm:"index;not null"`
	Fee         *string
	FeeCurrency string
	Venue       string    `gorm:"not null"`
	Timestamp   time.Time `gorm:"index;not null"`
}

func (TradeRecord) TableName() string { return "trades" }

// Store is Ledger: append-only persistence for the three relations, backed
// by sqlite (default, file or in-memory DSN) or MySQL (dsn prefixed
// "mysql://").
type Store struct {
	db *gorm.DB
}

// Open connects to databaseURL and migrates the schema. An empty
// databaseURL defaults to an in-process sqlite file, matching the spec's
// optional database_url configuration field.
func Open(databaseURL string) (*Store, error) {
	if databaseURL == "" {
		databaseURL = "hedgebot.db"
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, "mysql://"):
		dialector = mysql.Open(strings.TrimPrefix(databaseURL, "mysql://"))
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	default:
		dialector = sqlite.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLedger, "opening database", err)
	}

	if err := db.AutoMigrate(&SnapshotRecord{}, &HedgeRecordRow{}, &TradeRecord{}); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLedger, "migrating schema", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrLedger, "obtaining raw db handle", err)
	}
	return sqlDB.Close()
}

// SaveSnapshot appends a PositionSnapshot. Persistence is best-effort from
// the aggregator's perspective: a failure here never blocks tick
// processing, it is only logged by the caller.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.PositionSnapshot) error {
	row := SnapshotRecord{
		PoolAddress: snap.PoolAddress,
		Reserve0:    snap.Reserve0.String(),
		Reserve1:    snap.Reserve1.String(),
		ShortSize:   snap.ShortSize.String(),
		BlockNumber: snap.BlockNumber,
		Status:      string(snap.Status),
		Timestamp:   snap.Timestamp.Time(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrLedger, "saving snapshot", err)
	}
	return nil
}

// RecentSnapshots returns the most recent n snapshots, newest first.
func (s *Store) RecentSnapshots(ctx context.Context, n int) ([]model.PositionSnapshot, error) {
	var rows []SnapshotRecord
	if err := s.db.WithContext(ctx).Order("timestamp DESC").Limit(n).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLedger, "loading recent snapshots", err)
	}
	out := make([]model.PositionSnapshot, 0, len(rows))
	for _, r := range rows {
		snap, err := snapshotFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func snapshotFromRow(r SnapshotRecord) (model.PositionSnapshot, error) {
	reserve0, err := decimalx.NewDecimalFromString(r.Reserve0)
	if err != nil {
		return model.PositionSnapshot{}, err
	}
	reserve1, err := decimalx.NewDecimalFromString(r.Reserve1)
	if err != nil {
		return model.PositionSnapshot{}, err
	}
	shortSize, err := decimalx.NewDecimalFromString(r.ShortSize)
	if err != nil {
		return model.PositionSnapshot{}, err
	}
	r0Amt, err := decimalx.NewAmount(reserve0)
	if err != nil {
		return model.PositionSnapshot{}, err
	}
	r1Amt, err := decimalx.NewAmount(reserve1)
	if err != nil {
		return model.PositionSnapshot{}, err
	}
	ssAmt, err := decimalx.NewAmount(shortSize)
	if err != nil {
		return model.PositionSnapshot{}, err
	}
	return model.PositionSnapshot{
		Reserve0:    r0Amt,
		Reserve1:    r1Amt,
		ShortSize:   ssAmt,
		Timestamp:   decimalx.NewTime(r.Timestamp),
		BlockNumber: r.BlockNumber,
		PoolAddress: r.PoolAddress,
		Status:      model.PoolStatus(r.Status),
	}, nil
}

// SaveHedge appends a HedgeRecord, successful or failed.
func (s *Store) SaveHedge(ctx context.Context, h model.HedgeRecord) error {
	row := HedgeRecordRow{
		Action:       string(h.Action),
		Size:         h.Size.String(),
		Price:        h.Price.String(),
		DeltaBefore:  h.DeltaBefore.String(),
		DeltaAfter:   h.DeltaAfter.String(),
		Leverage:     h.Leverage.String(),
		Venue:        h.Venue,
		OrderID:      h.OrderID,
		Success:      h.Success,
		ErrorMessage: h.ErrorMessage,
		Timestamp:    h.Timestamp.Time(),
	}
	if h.GasCost != nil {
		gc := h.GasCost.String()
		row.GasCost = &gc
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrLedger, "saving hedge record", err)
	}
	return nil
}

// RecentHedges returns the most recent n hedge records, newest first.
func (s *Store) RecentHedges(ctx context.Context, n int) ([]model.HedgeRecord, error) {
	var rows []HedgeRecordRow
	if err := s.db.WithContext(ctx).Order("timestamp DESC").Limit(n).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLedger, "loading recent hedges", err)
	}
	out := make([]model.HedgeRecord, 0, len(rows))
	for _, r := range rows {
		h, err := hedgeFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func hedgeFromRow(r HedgeRecordRow) (model.HedgeRecord, error) {
	size, err := decimalAmount(r.Size)
	if err != nil {
		return model.HedgeRecord{}, err
	}
	priceDec, err := decimalx.NewDecimalFromString(r.Price)
	if err != nil {
		return model.HedgeRecord{}, err
	}
	price, err := decimalx.NewPrice(priceDec)
	if err != nil {
		return model.HedgeRecord{}, err
	}
	deltaBefore, err := decimalx.NewDecimalFromString(r.DeltaBefore)
	if err != nil {
		return model.HedgeRecord{}, err
	}
	deltaAfter, err := decimalx.NewDecimalFromString(r.DeltaAfter)
	if err != nil {
		return model.HedgeRecord{}, err
	}
	leverage, err := decimalx.NewDecimalFromString(r.Leverage)
	if err != nil {
		return model.HedgeRecord{}, err
	}
	h := model.HedgeRecord{
		Action:       model.HedgeAction(r.Action),
		Size:         size,
		Price:        price,
		Timestamp:    decimalx.NewTime(r.Timestamp),
		DeltaBefore:  decimalx.NewSigned(deltaBefore),
		DeltaAfter:   decimalx.NewSigned(deltaAfter),
		Leverage:     leverage,
		Venue:        r.Venue,
		OrderID:      r.OrderID,
		Success:      r.Success,
		ErrorMessage: r.ErrorMessage,
	}
	if r.GasCost != nil {
		gc, err := decimalx.NewDecimalFromString(*r.GasCost)
		if err == nil {
			h.GasCost = &gc
		}
	}
	return h, nil
}

func decimalAmount(s string) (decimalx.Amount, error) {
	d, err := decimalx.NewDecimalFromString(s)
	if err != nil {
		return decimalx.Amount{}, err
	}
	return decimalx.NewAmount(d)
}

// SaveTrade appends a Trade. OrderID must be unique; a duplicate insert
// fails as a ledger error rather than silently overwriting a prior fill.
func (s *Store) SaveTrade(ctx context.Context, t model.Trade) error {
	row := TradeRecord{
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		OrderType:   string(t.OrderType),
		Size:        t.Size.String(),
		Price:       t.Price.String(),
		OrderID:     t.OrderID,
		Status:      string(t.Status),
		FeeCurrency: t.FeeCurrency,
		Venue:       t.Venue,
		Timestamp:   t.Timestamp.Time(),
	}
	if t.Fee != nil {
		fee := t.Fee.String()
		row.Fee = &fee
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrLedger, "saving trade", err)
	}
	return nil
}

// SaveHedgeAndTrade appends a HedgeRecord and its matching Trade atomically:
// either both land or neither does, so a crash between the two writes can
// never leave a Trade with no matching HedgeRecord.
func (s *Store) SaveHedgeAndTrade(ctx context.Context, h model.HedgeRecord, t model.Trade) error {
	tradeRow := TradeRecord{
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		OrderType:   string(t.OrderType),
		Size:        t.Size.String(),
		Price:       t.Price.String(),
		OrderID:     t.OrderID,
		Status:      string(t.Status),
		FeeCurrency: t.FeeCurrency,
		Venue:       t.Venue,
		Timestamp:   t.Timestamp.Time(),
	}
	if t.Fee != nil {
		fee := t.Fee.String()
		tradeRow.Fee = &fee
	}

	hedgeRow := HedgeRecordRow{
		Action:       string(h.Action),
		Size:         h.Size.String(),
		Price:        h.Price.String(),
		DeltaBefore:  h.DeltaBefore.String(),
		DeltaAfter:   h.DeltaAfter.String(),
		Leverage:     h.Leverage.String(),
		Venue:        h.Venue,
		OrderID:      h.OrderID,
		Success:      h.Success,
		ErrorMessage: h.ErrorMessage,
		Timestamp:    h.Timestamp.Time(),
	}
	if h.GasCost != nil {
		gc := h.GasCost.String()
		hedgeRow.GasCost = &gc
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return apperrors.Wrap(apperrors.ErrLedger, "beginning hedge/trade transaction", tx.Error)
	}
	if err := tx.Create(&tradeRow).Error; err != nil {
		tx.Rollback()
		return apperrors.Wrap(apperrors.ErrLedger, "saving trade", err)
	}
	if err := tx.Create(&hedgeRow).Error; err != nil {
		tx.Rollback()
		return apperrors.Wrap(apperrors.ErrLedger, "saving hedge record", err)
	}
	if err := tx.Commit().Error; err != nil {
		return apperrors.Wrap(apperrors.ErrLedger, "committing hedge/trade transaction", err)
	}
	return nil
}

// UpdateTradeStatus updates the status of the trade with the given orderID.
// Idempotent: applying the same status twice leaves the row unchanged, and
// it reports false (not an error) when no trade with that orderID exists.
func (s *Store) UpdateTradeStatus(ctx context.Context, orderID string, status model.OrderStatus) (bool, error) {
	result := s.db.WithContext(ctx).Model(&TradeRecord{}).
		Where("order_id = ?", orderID).
		Update("status", string(status))
	if result.Error != nil {
		return false, apperrors.Wrap(apperrors.ErrLedger, "updating trade status", result.Error)
	}
	var row TradeRecord
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.ErrLedger, "confirming trade status update", err)
	}
	return true, nil
}

// TradeByOrderID looks up a trade by its unique order ID.
func (s *Store) TradeByOrderID(ctx context.Context, orderID string) (model.Trade, bool, error) {
	var row TradeRecord
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return model.Trade{}, false, nil
	}
	if err != nil {
		return model.Trade{}, false, apperrors.Wrap(apperrors.ErrLedger, "loading trade", err)
	}
	t, err := tradeFromRow(row)
	if err != nil {
		return model.Trade{}, false, err
	}
	return t, true, nil
}

func tradeFromRow(r TradeRecord) (model.Trade, error) {
	size, err := decimalAmount(r.Size)
	if err != nil {
		return model.Trade{}, err
	}
	priceDec, err := decimalx.NewDecimalFromString(r.Price)
	if err != nil {
		return model.Trade{}, err
	}
	price, err := decimalx.NewPrice(priceDec)
	if err != nil {
		return model.Trade{}, err
	}
	t := model.Trade{
		Symbol:      r.Symbol,
		Side:        model.OrderSide(r.Side),
		OrderType:   model.OrderType(r.OrderType),
		Size:        size,
		Price:       price,
		Timestamp:   decimalx.NewTime(r.Timestamp),
		OrderID:     r.OrderID,
		Status:      model.OrderStatus(r.Status),
		FeeCurrency: r.FeeCurrency,
		Venue:       r.Venue,
	}
	if r.Fee != nil {
		fee, err := decimalx.NewDecimalFromString(*r.Fee)
		if err == nil {
			t.Fee = &fee
		}
	}
	return t, nil
}

// CleanupOldData deletes snapshots, hedges, and trades older than
// retentionDays, run periodically to bound storage growth, and reports the
// total number of rows deleted across all three relations.
func (s *Store) CleanupOldData(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrLedger, "beginning cleanup transaction", tx.Error)
	}

	var deleted int64

	snapshots := tx.Where("timestamp < ?", cutoff).Delete(&SnapshotRecord{})
	if snapshots.Error != nil {
		tx.Rollback()
		return 0, apperrors.Wrap(apperrors.ErrLedger, "cleaning up snapshots", snapshots.Error)
	}
	deleted += snapshots.RowsAffected

	hedges := tx.Where("timestamp < ?", cutoff).Delete(&HedgeRecordRow{})
	if hedges.Error != nil {
		tx.Rollback()
		return 0, apperrors.Wrap(apperrors.ErrLedger, "cleaning up hedges", hedges.Error)
	}
	deleted += hedges.RowsAffected

	trades := tx.Where("timestamp < ?", cutoff).Delete(&TradeRecord{})
	if trades.Error != nil {
		tx.Rollback()
		return 0, apperrors.Wrap(apperrors.ErrLedger, "cleaning up trades", trades.Error)
	}
	deleted += trades.RowsAffected

	if err := tx.Commit().Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLedger, "committing cleanup transaction", err)
	}
	return deleted, nil
}
