package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/models"
	"github.com/mailcat/mailcat/internal/tracing"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) Create(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	// Redelivery happens; dedupe on Message-ID before creating.
	existing := &models.Email{}
	err := r.db.WithContext(ctx).
		Where("message_id = ?", email.MessageID).
		First(existing).Error

	if err == nil {
		span.SetTag("duplicate", true)
		email.ID = existing.ID
		return nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tracing.TraceErr(span, err)
		return err
	}

	result := r.db.WithContext(ctx).Create(email)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	tracing.TagEmailID(span, email.ID)

	return nil
}

// GetByID is scoped to a mailbox so one token can never read another
// mailbox's mail by guessing IDs.
func (r *emailRepository) GetByID(ctx context.Context, mailboxID, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	err := r.db.WithContext(ctx).
		Where("id = ? AND mailbox_id = ?", id, mailboxID).
		First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ListByMailbox(ctx context.Context, mailboxID string, limit, offset int) ([]*models.Email, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByMailbox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var emails []*models.Email
	var count int64

	query := r.db.WithContext(ctx).Model(&models.Email{}).Where("mailbox_id = ?", mailboxID)
	if err := query.Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	err := query.
		Order("received_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}
	return emails, count, nil
}

func (r *emailRepository) Delete(ctx context.Context, mailboxID, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("id = ? AND mailbox_id = ?", id, mailboxID).
		Delete(&models.Email{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *emailRepository) DeleteByMailbox(ctx context.Context, mailboxID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.DeleteByMailbox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).
		Where("mailbox_id = ?", mailboxID).
		Delete(&models.Email{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *emailRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.DeleteOlderThan")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("received_at < ?", cutoff).
		Delete(&models.Email{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
