package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"FacilityBot/bot/chat"
)

func (m *MongoDB) LoadSession(ctx context.Context, phone string) (*chat.Session, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	var session chat.Session
	err = collection.FindOne(ctx, bson.D{{"phone", phone}}).Decode(&session)
	if err != nil {
		return nil, m.findError(err)
	}
	return &session, nil
}

// SaveSession writes the session of a phone. Version 0 replaces whatever is
// stored; any other version must match the stored document.
func (m *MongoDB) SaveSession(ctx context.Context, session *chat.Session) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	expected := session.Version
	session.Version = expected + 1

	if expected == 0 {
		filter := bson.D{{"phone", session.Phone}}
		opts := options.Replace().SetUpsert(true)
		if _, err = collection.ReplaceOne(ctx, filter, session, opts); err != nil {
			session.Version = expected
			return fmt.Errorf("mongodb save session: %w", err)
		}
		return nil
	}

	filter := bson.D{{"phone", session.Phone}, {"version", expected}}
	res, err := collection.ReplaceOne(ctx, filter, session)
	if err != nil {
		session.Version = expected
		return fmt.Errorf("mongodb save session: %w", err)
	}
	if res.MatchedCount == 0 {
		session.Version = expected
		return chat.ErrSessionConflict
	}
	return nil
}

func (m *MongoDB) DeleteSession(ctx context.Context, phone string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	_, err = collection.DeleteOne(ctx, bson.D{{"phone", phone}})
	return err
}

// ListSessions returns the most recently updated sessions first.
func (m *MongoDB) ListSessions(ctx context.Context, limit int64) ([]*chat.Session, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(sessionsCollection)

	if limit <= 0 {
		limit = defaultListLimit
	}
	opts := options.Find().SetSort(bson.D{{"updated_at", -1}}).SetLimit(limit)
	cursor, err := collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*chat.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("mongodb decode sessions: %w", err)
	}
	return sessions, nil
}
