package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/session-security/internal/core/domain"
)

const accountCollection = "accounts"

// AccountStore implements ports.AccountStore on MongoDB.
type AccountStore struct {
	coll *mongo.Collection
}

func NewAccountStore(db *mongo.Database) *AccountStore {
	return &AccountStore{coll: db.Collection(accountCollection)}
}

type mongoAccount struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Identifier string             `bson:"identifier"`
	SecretHash string             `bson:"secret_hash"`
	Role       string             `bson:"role"`
	CreatedAt  int64              `bson:"created_at"`
}

// EnsureIndexes creates the unique identifier index that CreateAccount relies
// on for duplicate detection.
func (s *AccountStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identifier", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create account index: %w", err)
	}
	return nil
}

func (s *AccountStore) CreateAccount(ctx context.Context, record *domain.CredentialRecord) (string, error) {
	doc := mongoAccount{
		Identifier: record.Identifier,
		SecretHash: record.SecretHash,
		Role:       record.Role.Tag(),
		CreatedAt:  record.CreatedAt.Unix(),
	}

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", domain.ErrAccountExists
		}
		return "", fmt.Errorf("insert account: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

func (s *AccountStore) FindCredentials(ctx context.Context, identifier string) (*domain.CredentialRecord, error) {
	var ma mongoAccount
	if err := s.coll.FindOne(ctx, bson.M{"identifier": identifier}).Decode(&ma); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return ma.toDomain()
}

func (ma mongoAccount) toDomain() (*domain.CredentialRecord, error) {
	role, err := domain.ParseRole(ma.Role)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", ma.Identifier, err)
	}
	return &domain.CredentialRecord{
		ID:         ma.ID.Hex(),
		Identifier: ma.Identifier,
		SecretHash: ma.SecretHash,
		Role:       role,
		CreatedAt:  unixToTime(ma.CreatedAt),
	}, nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
