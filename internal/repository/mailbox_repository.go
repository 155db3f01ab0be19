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
	"github.com/mailcat/mailcat/internal/utils"
)

type mailboxRepository struct {
	db *gorm.DB
}

func NewMailboxRepository(db *gorm.DB) interfaces.MailboxRepository {
	return &mailboxRepository{
		db: db,
	}
}

func (r *mailboxRepository) Create(ctx context.Context, mailbox *models.Mailbox) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Create(mailbox)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	tracing.TagMailboxID(span, mailbox.ID)

	return nil
}

// GetByID retrieves a mailbox regardless of expiry; callers that care about
// liveness use GetByEmailAddress or GetByToken.
func (r *mailboxRepository) GetByID(ctx context.Context, id string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var mailbox models.Mailbox
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&mailbox).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &mailbox, nil
}

func (r *mailboxRepository) GetByEmailAddress(ctx context.Context, address string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetByEmailAddress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var mailbox models.Mailbox
	err := r.db.WithContext(ctx).
		Where("email_address = ? AND expires_at > ?", address, utils.Now()).
		First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &mailbox, nil
}

func (r *mailboxRepository) GetByToken(ctx context.Context, token string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetByToken")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var mailbox models.Mailbox
	err := r.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, utils.Now()).
		First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &mailbox, nil
}

func (r *mailboxRepository) CountLive(ctx context.Context) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.CountLive")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Mailbox{}).
		Where("expires_at > ?", utils.Now()).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

func (r *mailboxRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.ListExpired")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var mailboxes []*models.Mailbox
	err := r.db.WithContext(ctx).
		Where("expires_at <= ?", cutoff).
		Find(&mailboxes).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return mailboxes, nil
}

func (r *mailboxRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.DeleteExpired")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", cutoff).
		Delete(&models.Mailbox{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
