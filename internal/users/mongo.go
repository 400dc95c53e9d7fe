package users

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/collabtext/collabtext/internal/database"
	"github.com/collabtext/collabtext/internal/models"
)

// MongoUserRepository implements UserRepository using MongoDB.
// Users embed their role; roles live in their own collection so ids stay stable.
type MongoUserRepository struct {
	users    *mongo.Collection
	roles    *mongo.Collection
	counters *mongo.Collection
}

// NewMongoUserRepository creates a repository over the users, roles and counters collections of db
func NewMongoUserRepository(ctx context.Context, db *mongo.Database) (*MongoUserRepository, error) {
	r := &MongoUserRepository{
		users:    db.Collection("users"),
		roles:    db.Collection("roles"),
		counters: db.Collection("counters"),
	}
	unique := options.Index().SetUnique(true)
	if _, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique}); err != nil {
		return nil, err
	}
	if _, err := r.roles.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique}); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoUserRepository) EnsureRole(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := r.roles.FindOne(ctx, bson.M{"name": name}).Decode(&role)
	if err == nil {
		return &role, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	id, err := database.NextSequence(ctx, r.counters, "roles")
	if err != nil {
		return nil, err
	}
	role = models.Role{ID: id, Name: name}
	if _, err := r.roles.InsertOne(ctx, role); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// lost a race with another registration; read the winner
			if err := r.roles.FindOne(ctx, bson.M{"name": name}).Decode(&role); err != nil {
				return nil, err
			}
			return &role, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	id, err := database.NextSequence(ctx, r.counters, "users")
	if err != nil {
		return nil, err
	}
	u.ID = id
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if _, err := r.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
