package repository

import (
	"context"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"gorm.io/gorm"
)

// AccountRepository defines the interface for account data operations
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Account, error)
	GetBySubject(ctx context.Context, subject string) (*models.Account, error)
	SubjectDeleted(ctx context.Context, subject string) (bool, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error)
	UpdateProfile(ctx context.Context, account *models.Account) error
	Count(ctx context.Context) (int64, error)
}

type accountRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db, log: observability.NewRepoLogger("accounts")}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if isUniqueViolation(err) {
		return models.NewConflictError("account already exists")
	}
	if err != nil {
		r.log.LogError(ctx, "create", err)
		return err
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, notFoundOr(err, "Account", id)
	}
	return &account, nil
}

func (r *accountRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Account, error) {
	accounts := []models.Account{}
	if len(ids) == 0 {
		return accounts, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("username_key ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) GetBySubject(ctx context.Context, subject string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("auth_subject = ?", subject).First(&account).Error; err != nil {
		return nil, notFoundOr(err, "Account", subject)
	}
	return &account, nil
}

func (r *accountRepository) SubjectDeleted(ctx context.Context, subject string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DeletedSubject{}).
		Where("subject = ?", subject).
		Count(&count).Error
	return count > 0, err
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("username_key = ?", models.UsernameKey(username)).
		First(&account).Error
	if err != nil {
		return nil, notFoundOr(err, "Account", username)
	}
	return &account, nil
}

func (r *accountRepository) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("username_key = ?", models.UsernameKey(username))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateProfile writes the self-editable fields. Role and identity columns
// are never touched here.
func (r *accountRepository) UpdateProfile(ctx context.Context, account *models.Account) error {
	account.UsernameKey = models.UsernameKey(account.Username)
	res := r.db.WithContext(ctx).Model(account).
		Select("username", "username_key", "display_name", "avatar_url", "bio").
		Updates(account)
	if isUniqueViolation(res.Error) {
		return models.NewConflictError("username is already taken")
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Account", account.ID)
	}
	return nil
}

func (r *accountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Count(&count).Error
	return count, err
}
