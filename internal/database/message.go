package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"FacilityBot/entity"
)

func (m *MongoDB) SaveInboundMessage(ctx context.Context, message *entity.InboundMessage) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(messagesCollection)
	_, err = collection.InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("mongodb insert message: %w", err)
	}
	return nil
}

func (m *MongoDB) ListMessages(ctx context.Context, phone string, limit int64) ([]*entity.InboundMessage, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(messagesCollection)

	if limit <= 0 {
		limit = defaultListLimit
	}
	filter := bson.D{}
	if phone != "" {
		filter = bson.D{{"phone", phone}}
	}
	opts := options.Find().SetSort(bson.D{{"created_at", -1}}).SetLimit(limit)
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*entity.InboundMessage
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode messages: %w", err)
	}
	return messages, nil
}
