package repository

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"

	"postback-relay/internal/model"
)

const insertConversionQuery = `
	INSERT INTO postback_conversions (event_id, profile_id, transaction_id, status, campaign_id, source,
	                                  country, revenue, processed, error, created_at)
`

type conversionRepository struct {
	conn clickhouse.Conn
}

// NewConversionRepository creates a ConversionRepository backed by ClickHouse.
func NewConversionRepository(conn clickhouse.Conn) ConversionRepository {
	return &conversionRepository{conn: conn}
}

func (r *conversionRepository) CreateBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertConversionQuery)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, event := range events {
		errText := ""
		if event.Error != nil {
			errText = *event.Error
		}
		if err := batch.Append(
			event.ID,
			event.ProfileID,
			event.TransactionID,
			event.Status,
			event.CampaignID,
			event.Source,
			event.Country,
			revenueDecimal(event.Revenue),
			event.Processed,
			errText,
			event.CreatedAt,
		); err != nil {
			return fmt.Errorf("append batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// revenueDecimal parses a tracker amount; anything unparsable counts as zero.
func revenueDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
