package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

const accountsCollection = "accounts"

// AccountRepository implements ports.AccountRepository on MongoDB.
type AccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(accountsCollection)}
}

type accountDoc struct {
	ID             string     `bson:"_id"`
	LoginKey       string     `bson:"login_key"`
	SecretHash     string     `bson:"secret_hash"`
	Role           string     `bson:"role"`
	Active         bool       `bson:"active"`
	FailedAttempts int        `bson:"failed_attempts"`
	LockedUntil    *time.Time `bson:"locked_until,omitempty"`
	LastAccess     *time.Time `bson:"last_access,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func (d *accountDoc) toDomain() *domain.Account {
	return &domain.Account{
		ID:             d.ID,
		LoginKey:       d.LoginKey,
		SecretHash:     d.SecretHash,
		Role:           domain.Role(d.Role),
		Active:         d.Active,
		FailedAttempts: d.FailedAttempts,
		LockedUntil:    d.LockedUntil,
		LastAccess:     d.LastAccess,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := accountDoc{
		ID:         uuid.NewString(),
		LoginKey:   account.LoginKey,
		SecretHash: account.SecretHash,
		Role:       string(account.Role),
		Active:     account.Active,
		CreatedAt:  account.CreatedAt,
		UpdatedAt:  account.UpdatedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	created := *account
	created.ID = doc.ID
	return &created, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByLoginKey(ctx context.Context, loginKey string, patient bool) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	roleFilter := bson.M{"$ne": string(domain.RolePatient)}
	if patient {
		roleFilter = bson.M{"$eq": string(domain.RolePatient)}
	}

	var doc accountDoc
	err := r.coll.FindOne(ctx, bson.M{"login_key": loginKey, "role": roleFilter}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account by login key: %w", err)
	}
	return doc.toDomain(), nil
}

// RegisterFailure increments failed_attempts and conditionally sets
// locked_until in one server-side update (aggregation pipeline form), so two
// concurrent failed attempts against the same account cannot under-count and
// miss the lock threshold.
func (r *AccountRepository) RegisterFailure(ctx context.Context, id string, threshold int, cooldown time.Duration) (int, *time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	lockUntil := now.Add(cooldown)
	incremented := bson.M{"$add": bson.A{"$failed_attempts", 1}}

	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"failed_attempts": incremented,
			"locked_until": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{incremented, threshold}},
				lockUntil,
				"$locked_until",
			}},
			"updated_at": now,
		}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc accountDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil, domain.ErrAccountNotFound
		}
		return 0, nil, fmt.Errorf("register login failure: %w", err)
	}
	return doc.FailedAttempts, doc.LockedUntil, nil
}

func (r *AccountRepository) RegisterSuccess(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"failed_attempts": 0,
			"last_access":     at,
			"updated_at":      at,
		},
		"$unset": bson.M{"locked_until": ""},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("register login success: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// EnsureIndexes creates the login-key lookup index. The key is unique per
// login path (staff email vs patient CPF), so uniqueness is compound with the
// role class rather than the bare key.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "login_key", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
