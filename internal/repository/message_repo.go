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

type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(coll *mongo.Collection) *MessageRepository {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: -1}},
		Options: options.Index().SetName("conversation_sent_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), idx)
	return &MessageRepository{coll: coll}
}

func normalize(m *models.Message) {
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	if m.SeenBy == nil {
		m.SeenBy = []string{}
	}
	if m.Reactions == nil {
		m.Reactions = []models.Reaction{}
	}
	if m.ReactionsCount == nil {
		m.ReactionsCount = map[string]int{}
	}
	if m.HiddenFor == nil {
		m.HiddenFor = []string{}
	}
}

func (r *MessageRepository) Insert(ctx context.Context, m *models.Message) error {
	normalize(m)
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	res, err := r.coll.InsertOne(ctx, m)
	if err != nil {
		return err
	}
	m.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var m models.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	normalize(&m)
	return &m, nil
}

// FindByConversation returns one page of messages in chronological order; the
// query walks newest-first and the page is reversed before returning.
func (r *MessageRepository) FindByConversation(ctx context.Context, convID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error) {
	filter := bson.M{"conversation_id": convID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []*models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, 0, err
		}
		normalize(&m)
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, 0, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, total, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, id primitive.ObjectID, userID string) (*models.Message, error) {
	res := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"seen_by": userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m models.Message
	if err := res.Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	normalize(&m)
	return &m, nil
}

func (r *MessageRepository) MarkConversationRead(ctx context.Context, convID primitive.ObjectID, userID string) error {
	_, err := r.coll.UpdateMany(
		ctx,
		bson.M{"conversation_id": convID, "seen_by": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"seen_by": userID}},
	)
	return err
}

// AddReaction appends the reaction and bumps its counter in one update so the
// counter invariant holds under concurrent reactions.
func (r *MessageRepository) AddReaction(ctx context.Context, id primitive.ObjectID, userID, rtype string) error {
	update := bson.M{
		"$push": bson.M{"reactions": models.Reaction{UserID: userID, Type: rtype}},
		"$inc":  bson.M{"reactions_count." + rtype: 1},
	}
	_, err := r.coll.UpdateByID(ctx, id, update)
	return err
}

func (r *MessageRepository) RemoveReaction(ctx context.Context, id primitive.ObjectID, userID, rtype string) error {
	update := bson.M{
		"$pull": bson.M{"reactions": bson.M{"user_id": userID}},
		"$inc":  bson.M{"reactions_count." + rtype: -1},
	}
	_, err := r.coll.UpdateByID(ctx, id, update)
	return err
}

func (r *MessageRepository) ChangeReaction(ctx context.Context, id primitive.ObjectID, userID, oldType, newType string) error {
	update := bson.M{
		"$set": bson.M{"reactions.$[elem].type": newType},
		"$inc": bson.M{
			"reactions_count." + oldType: -1,
			"reactions_count." + newType: 1,
		},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"elem.user_id": userID}},
	})
	_, err := r.coll.UpdateByID(ctx, id, update, opts)
	return err
}

func (r *MessageRepository) SetPinned(ctx context.Context, id primitive.ObjectID, pinned bool) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"is_pinned": pinned}})
	return err
}

func (r *MessageRepository) HideForUser(ctx context.Context, id primitive.ObjectID, userID string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{"hidden_for": userID}})
	return err
}

func (r *MessageRepository) HideForAll(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"is_hide_all": true}})
	return err
}

func (r *MessageRepository) DeleteByConversation(ctx context.Context, convID primitive.ObjectID) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"conversation_id": convID})
	return err
}
