package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vtrnguyen/orisharin-server/internal/models"
)

// UserRepository reads the user directory owned by the CRUD tier. This service
// only ever resolves display info; writes stay with the owning service.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(coll *mongo.Collection) *UserRepository {
	return &UserRepository{coll: coll}
}

// ResolveMany returns summaries for the ids that exist; unknown ids are simply
// absent from the result.
func (r *UserRepository) ResolveMany(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	if len(ids) == 0 {
		return []models.UserSummary{}, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.UserSummary{}
	for cur.Next(ctx) {
		var u models.UserSummary
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, cur.Err()
}
