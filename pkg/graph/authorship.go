package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

const (
	acceptCypher = `
		MERGE (a:Identity {authority_key: $authority_key})
		WITH a
		UNWIND $item_ids AS item_id
		MERGE (i:Item {id: item_id})
		MERGE (a)-[r:AUTHORED]->(i)
		SET r.confidence = $confidence, r.updated_at = $occurred_at
	`
	detachCypher = `
		MATCH (a:Identity {authority_key: $authority_key})-[r:AUTHORED]->(i:Item)
		WHERE i.id IN $item_ids
		DELETE r
	`
	authoredCypher = `
		MATCH (a:Identity {authority_key: $authority_key})-[:AUTHORED]->(i:Item)
		RETURN i.id AS item_id
		ORDER BY item_id
	`
)

type Executor interface {
	Exec(ctx context.Context, cypher string, params map[string]any) error
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// AuthorshipProjection mirrors accepted links as AUTHORED edges. It is a
// read model; the relational ledger stays authoritative.
type AuthorshipProjection struct {
	client Executor
	logger ectologger.Logger
}

func NewAuthorshipProjection(client Executor, logger ectologger.Logger) *AuthorshipProjection {
	return &AuthorshipProjection{
		client: client,
		logger: logger,
	}
}

// OnReviewEvent updates the AUTHORED edges for accepted, rejected and unlinked items.
func (p *AuthorshipProjection) OnReviewEvent(ctx context.Context, event models.ReviewEvent) error {
	ctx, span := tracing.StartSpan(ctx, "graph.AuthorshipProjection.OnReviewEvent")
	defer span.End()

	if len(event.ItemIDs) == 0 {
		return nil
	}

	params := map[string]any{
		"authority_key": event.AuthorityKey,
		"item_ids":      event.ItemIDs,
	}

	var cypher string
	switch event.Type {
	case models.ReviewEventAccepted:
		confidence := models.ConfidenceAccepted
		if event.Confidence != nil {
			confidence = *event.Confidence
		}
		params["confidence"] = confidence.String()
		params["occurred_at"] = event.OccurredAt.UTC().Format(time.RFC3339)
		cypher = acceptCypher
	case models.ReviewEventRejected, models.ReviewEventUnlinked:
		cypher = detachCypher
	default:
		return nil
	}

	if err := p.client.Exec(ctx, cypher, params); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"authority_key": event.AuthorityKey,
			"event_type":    event.Type,
		}).Error("Failed to project authorship")
		return err
	}
	return nil
}

// AuthoredItems lists the item ids projected for an identity.
func (p *AuthorshipProjection) AuthoredItems(ctx context.Context, authorityKey string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.AuthorshipProjection.AuthoredItems", tracing.AuthorityKey(authorityKey))
	defer span.End()

	rows, err := p.client.Query(ctx, authoredCypher, map[string]any{"authority_key": authorityKey})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("authority_key", authorityKey).Error("Failed to query authorship")
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["item_id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
