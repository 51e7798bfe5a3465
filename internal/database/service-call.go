package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"FacilityBot/entity"
)

func (m *MongoDB) SaveServiceCall(ctx context.Context, call *entity.ServiceCall) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(serviceCallsCollection)
	_, err = collection.InsertOne(ctx, call)
	if err != nil {
		return fmt.Errorf("mongodb insert service call: %w", err)
	}
	return nil
}

func (m *MongoDB) MarkServiceCallPushed(ctx context.Context, id, docNo string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(serviceCallsCollection)

	update := bson.D{{"$set", bson.D{
		{"pushed", true},
		{"erp_docno", docNo},
		{"status", entity.ServiceCallPushed},
		{"updated_at", time.Now()},
	}}}
	res, err := collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("mongodb mark pushed: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("service call %s not found", id)
	}
	return nil
}

func (m *MongoDB) ListServiceCalls(ctx context.Context, f entity.ServiceCallFilter) ([]*entity.ServiceCall, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(serviceCallsCollection)

	filter := bson.D{}
	if f.Phone != "" {
		filter = append(filter, bson.E{Key: "phone", Value: f.Phone})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	opts := options.Find().SetSort(bson.D{{"created_at", -1}}).SetLimit(limit)
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list service calls: %w", err)
	}
	defer cursor.Close(ctx)

	var calls []*entity.ServiceCall
	if err = cursor.All(ctx, &calls); err != nil {
		return nil, fmt.Errorf("mongodb decode service calls: %w", err)
	}
	return calls, nil
}

// LookupByPhone derives customer identity from the latest identified
// service call of a phone.
func (m *MongoDB) LookupByPhone(ctx context.Context, phone string) (entity.CustomerInfo, error) {
	connection, err := m.connect()
	if err != nil {
		return entity.CustomerInfo{}, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(serviceCallsCollection)

	filter := bson.D{
		{"phone", phone},
		{"custname", bson.D{{"$nin", bson.A{"", entity.DefaultCustomer}}}},
	}
	opts := options.FindOne().SetSort(bson.D{{"created_at", -1}})

	var call entity.ServiceCall
	if err = collection.FindOne(ctx, filter, opts).Decode(&call); err != nil {
		return entity.CustomerInfo{}, m.findError(err)
	}
	return entity.CustomerInfo{
		Name:         call.CustomerName,
		CustomerID:   call.CustomerNumber,
		DeviceNumber: call.SerialNumber,
	}, nil
}
