package repository

import (
	"context"
	"fmt"

	"hattery/database"
	"hattery/events"
	"hattery/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	txOptions        pgx.TxOptions
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	campaignRepo     service.CampaignRepository
	positionRepo     service.PositionRepository
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// CreateReadOnly creates a unit of work for snapshot queries. The repeatable
// read isolation level pins every read inside it to one point in time, so a
// campaign row and its position aggregates can never come from different
// commits.
func (f *unitOfWorkFactory) CreateReadOnly() service.UnitOfWork {
	return &unitOfWork{
		db: f.db,
		txOptions: pgx.TxOptions{
			IsoLevel:   pgx.RepeatableRead,
			AccessMode: pgx.ReadOnly,
		},
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginTx(ctx, u.txOptions)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.campaignRepo = newCampaignRepositoryWithTx(tx)
	u.positionRepo = newPositionRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events only after the state change is durable
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// CampaignRepository returns the campaign repository for this unit of work
func (u *unitOfWork) CampaignRepository() service.CampaignRepository {
	if u.campaignRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.campaignRepo
}

// PositionRepository returns the position repository for this unit of work
func (u *unitOfWork) PositionRepository() service.PositionRepository {
	if u.positionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.positionRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
