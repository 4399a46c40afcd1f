package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProfilesCollection is the MongoDB collection holding one profile per identity.
const ProfilesCollection = "profiles"

// ProfileDirectory is the document store of user profiles keyed by identity id.
// Records are only ever written whole.
type ProfileDirectory struct {
	col *mongo.Collection
}

func NewProfileDirectory(col *mongo.Collection) *ProfileDirectory {
	return &ProfileDirectory{col: col}
}

// EnsureIndexes creates the email lookup index. Email is not unique here: the
// credential store already rejects duplicate registrations.
func (d *ProfileDirectory) EnsureIndexes(ctx context.Context) error {
	_, err := d.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("idx_profiles_email"),
	})
	return err
}

// Get reads the profile stored under id. A missing record is ErrProfileNotFound.
func (d *ProfileDirectory) Get(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := d.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile %s: %w", id, err)
	}
	return &p, nil
}

// FindByEmail returns every profile whose email equals email exactly.
func (d *ProfileDirectory) FindByEmail(ctx context.Context, email string) ([]models.Profile, error) {
	cur, err := d.col.Find(ctx, bson.M{"email": email})
	if err != nil {
		return nil, fmt.Errorf("query profiles by email: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Profile
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	return out, nil
}

// Put writes the full record, replacing whatever was stored under p.ID.
func (d *ProfileDirectory) Put(ctx context.Context, p *models.Profile) error {
	if p == nil || p.ID == "" {
		return errors.New("profile id is required")
	}
	_, err := d.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("write profile %s: %w", p.ID, err)
	}
	return nil
}

// NewKey returns a fresh unique key, used for group ids.
func (d *ProfileDirectory) NewKey(context.Context) (string, error) {
	return primitive.NewObjectID().Hex(), nil
}
