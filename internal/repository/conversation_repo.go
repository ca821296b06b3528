package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vtrnguyen/orisharin-server/internal/apperr"
	"github.com/vtrnguyen/orisharin-server/internal/models"
)

type ConversationRepository struct {
	coll *mongo.Collection
}

func NewConversationRepository(coll *mongo.Collection) *ConversationRepository {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "participant_ids", Value: 1}},
		Options: options.Index().SetName("participant_ids_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), idx)
	return &ConversationRepository{coll: coll}
}

func (r *ConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.PinnedMessages == nil {
		c.PinnedMessages = []models.PinnedMessage{}
	}
	res, err := r.coll.InsertOne(ctx, c)
	if err != nil {
		return err
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindDirectByPair looks up the 1:1 conversation between two users,
// order-independent.
func (r *ConversationRepository) FindDirectByPair(ctx context.Context, a, b string) (*models.Conversation, error) {
	filter := bson.M{
		"is_group":        false,
		"participant_ids": bson.M{"$all": []string{a, b}, "$size": 2},
	}
	var c models.Conversation
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) FindAllByUser(ctx context.Context, userID string, page, limit int64) ([]*models.Conversation, int64, error) {
	filter := bson.M{"participant_ids": userID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []*models.Conversation{}
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, 0, err
		}
		out = append(out, &c)
	}
	return out, total, cur.Err()
}

// Participants returns just the member ids, for fan-out resolution.
func (r *ConversationRepository) Participants(ctx context.Context, id primitive.ObjectID) ([]string, error) {
	opts := options.FindOne().SetProjection(bson.M{"participant_ids": 1})
	var c models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return c.ParticipantIDs, nil
}

func (r *ConversationRepository) AddParticipants(ctx context.Context, id primitive.ObjectID, userIDs []string) error {
	update := bson.M{
		"$addToSet": bson.M{"participant_ids": bson.M{"$each": userIDs}},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.coll.UpdateByID(ctx, id, update)
	return err
}

func (r *ConversationRepository) RemoveParticipants(ctx context.Context, id primitive.ObjectID, userIDs []string) error {
	update := bson.M{
		"$pull": bson.M{"participant_ids": bson.M{"$in": userIDs}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.coll.UpdateByID(ctx, id, update)
	return err
}

func (r *ConversationRepository) SetCreatedBy(ctx context.Context, id primitive.ObjectID, userID string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"created_by": userID}})
	return err
}

func (r *ConversationRepository) SetName(ctx context.Context, id primitive.ObjectID, name string) error {
	return r.setField(ctx, id, "name", name)
}

func (r *ConversationRepository) SetAvatar(ctx context.Context, id primitive.ObjectID, url string) error {
	return r.setField(ctx, id, "avatar_url", url)
}

func (r *ConversationRepository) SetTheme(ctx context.Context, id primitive.ObjectID, theme string) error {
	return r.setField(ctx, id, "theme", theme)
}

func (r *ConversationRepository) setField(ctx context.Context, id primitive.ObjectID, field, value string) error {
	update := bson.M{"$set": bson.M{field: value, "updated_at": time.Now().UTC()}}
	_, err := r.coll.UpdateByID(ctx, id, update)
	return err
}

func (r *ConversationRepository) SetLastMessage(ctx context.Context, id primitive.ObjectID, lm *models.LastMessage) error {
	update := bson.M{"$set": bson.M{
		"last_message":    lm,
		"last_message_id": lm.ID,
		"updated_at":      time.Now().UTC(),
	}}
	_, err := r.coll.UpdateByID(ctx, id, update)
	return err
}

func (r *ConversationRepository) PushPinned(ctx context.Context, id primitive.ObjectID, pm models.PinnedMessage) error {
	update := bson.M{
		"$push": bson.M{"pinned_messages": pm},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.coll.UpdateByID(ctx, id, update)
	return err
}

func (r *ConversationRepository) PullPinned(ctx context.Context, id, messageID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"pinned_messages": bson.M{"message_id": messageID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.coll.UpdateByID(ctx, id, update)
	return err
}

func (r *ConversationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
