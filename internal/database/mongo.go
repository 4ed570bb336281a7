package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tgaccess/entity"
	"tgaccess/internal/config"
)

const (
	collectionChannels = "channels"
	collectionCodes    = "access_codes"
	collectionProfiles = "profiles"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
	return client
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(m.ctx)
}

// activeFilter selects codes still holding a concurrency slot at the given
// instant: unused and unexpired.
func activeFilter(now time.Time) bson.D {
	return bson.D{{Key: "used", Value: false}, {Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}}}
}

func (m *MongoDB) ActiveChannels() ([]*entity.Channel, error) {
	return m.findChannels(bson.D{{Key: "active", Value: true}})
}

func (m *MongoDB) Channels() ([]*entity.Channel, error) {
	return m.findChannels(bson.D{})
}

func (m *MongoDB) findChannels(filter bson.D) ([]*entity.Channel, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChannels)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(m.ctx)

	var channels []*entity.Channel
	err = cursor.All(m.ctx, &channels)
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (m *MongoDB) CreateChannel(channel *entity.Channel) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChannels)
	_, err = collection.InsertOne(m.ctx, channel)
	return err
}

func (m *MongoDB) DeleteChannel(id string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChannels)
	result, err := collection.DeleteOne(m.ctx, bson.D{{Key: "id", Value: id}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return entity.ErrChannelNotFound
	}
	return nil
}

func (m *MongoDB) SetChannelActive(id string, active bool) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChannels)
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: active}}}}
	result, err := collection.UpdateOne(m.ctx, bson.D{{Key: "id", Value: id}}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return entity.ErrChannelNotFound
	}
	return nil
}

func (m *MongoDB) ActiveCodes() ([]*entity.AccessCode, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionCodes)
	cursor, err := collection.Find(m.ctx, activeFilter(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(m.ctx)

	var codes []*entity.AccessCode
	err = cursor.All(m.ctx, &codes)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (m *MongoDB) CountUsedCodes() (int64, error) {
	connection, err := m.connect()
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionCodes)
	return collection.CountDocuments(m.ctx, bson.D{{Key: "used", Value: true}})
}

func (m *MongoDB) ActiveCodeByOwner(userId int64) (*entity.AccessCode, error) {
	filter := append(activeFilter(time.Now()), bson.E{Key: "telegram_user_id", Value: userId})
	return m.findCode(filter)
}

// ActiveCodeByValue confirms unused and unexpired at the instant of the read;
// a lapsed code is reported as absent even though the row still exists.
func (m *MongoDB) ActiveCodeByValue(code string) (*entity.AccessCode, error) {
	filter := append(activeFilter(time.Now()), bson.E{Key: "code", Value: code})
	return m.findCode(filter)
}

func (m *MongoDB) findCode(filter bson.D) (*entity.AccessCode, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionCodes)
	var accessCode entity.AccessCode
	err = collection.FindOne(m.ctx, filter).Decode(&accessCode)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &accessCode, nil
}

// InsertActiveCode inserts a fresh code under the concurrency policy. The
// active-set read and the insert run in one transaction, so two racing
// generate calls cannot both take the last slot. Returns ErrMaxActive when
// the budget is held by other requesters and ErrDuplicateCode when the drawn
// value collides with an active code (caller redraws).
func (m *MongoDB) InsertActiveCode(code *entity.AccessCode, maxActive int) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	session, err := connection.StartSession()
	if err != nil {
		return fmt.Errorf("mongodb session: %w", err)
	}
	defer session.EndSession(m.ctx)

	collection := connection.Database(m.database).Collection(collectionCodes)
	_, err = session.WithTransaction(m.ctx, func(sc mongo.SessionContext) (interface{}, error) {
		cursor, err := collection.Find(sc, activeFilter(time.Now()))
		if err != nil {
			return nil, fmt.Errorf("mongodb find: %w", err)
		}
		var active []*entity.AccessCode
		if err = cursor.All(sc, &active); err != nil {
			return nil, err
		}

		owners := make(map[int64]bool)
		for _, c := range active {
			if c.Code == code.Code {
				return nil, entity.ErrDuplicateCode
			}
			owners[c.TelegramUserId] = true
		}
		if !owners[code.TelegramUserId] && len(owners) >= maxActive {
			return nil, entity.ErrMaxActive
		}

		_, err = collection.InsertOne(sc, code)
		return nil, err
	})
	return err
}

// MarkCodeUsed is the single conditional mutation that consumes a code.
// The filter requires unused and unexpired, so of two concurrent claims
// exactly one matches.
func (m *MongoDB) MarkCodeUsed(code string, usedBy string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionCodes)
	filter := append(activeFilter(time.Now()), bson.E{Key: "code", Value: code})
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "used", Value: true}, {Key: "used_by", Value: usedBy}}}}
	err = collection.FindOneAndUpdate(m.ctx, filter, update).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.ErrCodeNotAvailable
	}
	if err != nil {
		return fmt.Errorf("mongodb update: %w", err)
	}
	return nil
}

// SetProfileVerified flags the claimant's profile as channel-verified.
func (m *MongoDB) SetProfileVerified(userId string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionProfiles)
	filter := bson.D{{Key: "user_id", Value: userId}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "telegram_verified", Value: true}}}}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(m.ctx, filter, update, opts)
	return err
}
