package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"FacilityBot/bot/chat"
)

func (m *MongoDB) GetScript(ctx context.Context, scriptID string) (*chat.Script, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(scriptsCollection)

	var script chat.Script
	err = collection.FindOne(ctx, bson.D{{"script_id", scriptID}}).Decode(&script)
	if err != nil {
		return nil, m.findError(err)
	}
	return &script, nil
}

// SaveScript upserts a script by script_id.
func (m *MongoDB) SaveScript(ctx context.Context, script *chat.Script) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(scriptsCollection)

	if script.CreatedAt.IsZero() {
		script.CreatedAt = time.Now()
	}
	script.UpdatedAt = time.Now()

	filter := bson.D{{"script_id", script.ScriptID}}
	opts := options.Replace().SetUpsert(true)

	if _, err = collection.ReplaceOne(ctx, filter, script, opts); err != nil {
		return fmt.Errorf("mongodb save script: %w", err)
	}
	return nil
}

func (m *MongoDB) DeleteScript(ctx context.Context, scriptID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(scriptsCollection)

	_, err = collection.DeleteOne(ctx, bson.D{{"script_id", scriptID}})
	return err
}

func (m *MongoDB) ListScripts(ctx context.Context) ([]*chat.Script, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(scriptsCollection)

	opts := options.Find().SetSort(bson.D{{"script_id", 1}})
	cursor, err := collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list scripts: %w", err)
	}
	defer cursor.Close(ctx)

	var scripts []*chat.Script
	if err = cursor.All(ctx, &scripts); err != nil {
		return nil, fmt.Errorf("mongodb decode scripts: %w", err)
	}
	return scripts, nil
}
