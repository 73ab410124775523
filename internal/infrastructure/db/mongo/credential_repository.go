package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

const collectionUsers = "users"

type CredentialRepository struct {
	coll *mongo.Collection
}

var _ ports.CredentialRepository = (*CredentialRepository)(nil)

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{coll: db.Collection(collectionUsers)}
}

type mongoUser struct {
	Username  string `bson:"username"`
	Role      string `bson:"role"`
	Password  string `bson:"password"`
	Client    string `bson:"client,omitempty"`
	UpdatedAt int64  `bson:"updated_at"`
}

func (u mongoUser) toDomain() *domain.Credential {
	return &domain.Credential{
		Username: u.Username,
		Role:     domain.Role(u.Role),
		Password: u.Password,
		Client:   u.Client,
	}
}

func (r *CredentialRepository) FindByUsername(ctx context.Context, username string) (*domain.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.NewStoreError("find user", err)
	}
	return mu.toDomain(), nil
}

func (r *CredentialRepository) List(ctx context.Context) ([]*domain.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, domain.NewStoreError("list users", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, domain.NewStoreError("list users", err)
	}
	out := make([]*domain.Credential, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// Save upserts the user; created is true when no document matched.
func (r *CredentialRepository) Save(ctx context.Context, c *domain.Credential) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoUser{
		Username:  c.Username,
		Role:      string(c.Role),
		Password:  c.Password,
		Client:    c.Client,
		UpdatedAt: time.Now().Unix(),
	}
	res, err := r.coll.ReplaceOne(ctx, bson.M{"username": c.Username}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return false, domain.NewStoreError("save user", err)
	}
	return res.UpsertedCount > 0, nil
}

func (r *CredentialRepository) Delete(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"username": username})
	if err != nil {
		return domain.NewStoreError("delete user", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique username index.
func (r *CredentialRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
