// Package mongostore keeps campusAuth accounts in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultCollection = "users"

// Config describes the Mongo deployment holding accounts.
type Config struct {
	URI             string
	Database        string
	Collection      string
	Timeout         time.Duration
	MaxPoolSize     uint64
	IdleConnTimeout time.Duration
}

func (c *Config) normalize() {
	if c.Collection == "" {
		c.Collection = defaultCollection
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 20
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 45 * time.Second
	}
}

// Validate reports a configuration that cannot connect.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URI) == "" {
		return errors.New("mongostore: URI must not be empty")
	}
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("mongostore: Database must not be empty")
	}
	return nil
}

// Connect dials the deployment and pings it before returning.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx,
		options.Client().ApplyURI(cfg.URI),
		options.Client().SetMaxConnIdleTime(cfg.IdleConnTimeout),
		options.Client().SetMaxPoolSize(cfg.MaxPoolSize),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.Timeout)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	return client, nil
}

// userDocument is one account. Accounts created here carry a UUID string
// _id; accounts carried over from the earlier service keep their ObjectId.
type userDocument struct {
	ID            any       `bson:"_id"`
	FirstName     string    `bson:"firstName"`
	LastName      string    `bson:"lastName"`
	Email         string    `bson:"email"`
	Password      string    `bson:"password"`
	Gender        string    `bson:"gender"`
	ContactNumber string    `bson:"contactNumber"`
	AccountType   string    `bson:"accountType"`
	Avatar        string    `bson:"avatar"`
	RefreshToken  string    `bson:"refreshToken,omitempty"`
	OTP           string    `bson:"otp,omitempty"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

func documentID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}

// idFilter matches userID stored either as a string or, when it parses as
// one, as an ObjectId.
func idFilter(userID string) bson.D {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return bson.D{{Key: "_id", Value: userID}}
	}
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{userID, oid}}}}}
}

func (d userDocument) record() campusAuth.UserRecord {
	return campusAuth.UserRecord{
		ID:            documentID(d.ID),
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		PasswordHash:  d.Password,
		Gender:        d.Gender,
		ContactNumber: d.ContactNumber,
		AccountType:   campusAuth.AccountType(d.AccountType),
		Avatar:        d.Avatar,
		RefreshToken:  d.RefreshToken,
		OTPID:         d.OTP,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Store implements campusAuth.UserProvider on one collection.
type Store struct {
	users   *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

var _ campusAuth.UserProvider = (*Store)(nil)

// New returns a store over coll. Each call is bounded by timeout on top of
// the caller's context.
func New(coll *mongo.Collection, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		users:   coll,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Open builds a store on the configured database and collection of client.
func Open(client *mongo.Client, cfg Config) *Store {
	cfg.normalize()
	return New(client.Database(cfg.Database).Collection(cfg.Collection), cfg.Timeout)
}

func (s *Store) getContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureIndexes creates the unique email index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
	})
	return err
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (campusAuth.UserRecord, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return campusAuth.UserRecord{}, campusAuth.ErrProviderNotFound
		}
		return campusAuth.UserRecord{}, err
	}
	return doc.record(), nil
}

// GetUserByEmail returns the account registered under email, or
// campusAuth.ErrProviderNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (campusAuth.UserRecord, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

// GetUserByID returns the account with userID, which may be a UUID or the
// hex form of a legacy ObjectId.
func (s *Store) GetUserByID(ctx context.Context, userID string) (campusAuth.UserRecord, error) {
	return s.findOne(ctx, idFilter(userID))
}

// CreateUser inserts a new account under a fresh UUID. A clash on the unique
// email index is reported as campusAuth.ErrProviderDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, input campusAuth.CreateUserInput) (campusAuth.UserRecord, error) {
	now := s.now()
	doc := userDocument{
		ID:            uuid.NewString(),
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Email:         input.Email,
		Password:      input.PasswordHash,
		Gender:        input.Gender,
		ContactNumber: input.ContactNumber,
		AccountType:   string(input.AccountType),
		Avatar:        input.Avatar,
		OTP:           input.OTPID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ctx, cancel := s.getContext(ctx)
	defer cancel()

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return campusAuth.UserRecord{}, campusAuth.ErrProviderDuplicateEmail
		}
		return campusAuth.UserRecord{}, err
	}
	return doc.record(), nil
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return s.updateByID(ctx, userID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "password", Value: passwordHash},
		{Key: "updatedAt", Value: s.now()},
	}}})
}

// SetRefreshToken records the refresh token of the latest login.
func (s *Store) SetRefreshToken(ctx context.Context, userID, refreshToken string) error {
	return s.updateByID(ctx, userID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "refreshToken", Value: refreshToken},
		{Key: "updatedAt", Value: s.now()},
	}}})
}

// ClearRefreshToken unsets the stored refresh token.
func (s *Store) ClearRefreshToken(ctx context.Context, userID string) error {
	return s.updateByID(ctx, userID, bson.D{
		{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: s.now()}}},
	})
}

func (s *Store) updateByID(ctx context.Context, userID string, update bson.D) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	res, err := s.users.UpdateOne(ctx, idFilter(userID), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return campusAuth.ErrProviderNotFound
	}
	return nil
}
