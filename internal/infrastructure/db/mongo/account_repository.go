package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
)

const (
	collectionAccounts = "accounts"

	indexUsernameLower = "uniq_username_lower"
	indexEmail         = "uniq_email"
)

// AccountRepository stores accounts with their inbox embedded in one document.
type AccountRepository struct {
	col *mongo.Collection
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{col: db.Collection(collectionAccounts)}
}

type accountDocument struct {
	ID                 primitive.ObjectID `bson:"_id"`
	Username           string             `bson:"username"`
	UsernameLower      string             `bson:"username_lower"`
	Email              string             `bson:"email"`
	PasswordHash       string             `bson:"password_hash"`
	VerifyCode         string             `bson:"verify_code"`
	VerifyCodeExpiry   time.Time          `bson:"verify_code_expiry"`
	IsVerified         bool               `bson:"is_verified"`
	IsAcceptingMessage bool               `bson:"is_accepting_message"`
	Messages           []messageDocument  `bson:"messages"`
	CreatedAt          time.Time          `bson:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at"`
}

type messageDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *accountDocument) toDomain() *domain.Account {
	msgs := make([]domain.Message, len(d.Messages))
	for i, m := range d.Messages {
		msgs[i] = m.toDomain()
	}
	return &domain.Account{
		ID:                 d.ID.Hex(),
		Username:           d.Username,
		Email:              d.Email,
		PasswordHash:       d.PasswordHash,
		VerifyCode:         d.VerifyCode,
		VerifyCodeExpiry:   d.VerifyCodeExpiry.UTC(),
		IsVerified:         d.IsVerified,
		IsAcceptingMessage: d.IsAcceptingMessage,
		Messages:           msgs,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
}

func (m messageDocument) toDomain() domain.Message {
	return domain.Message{ID: m.ID.Hex(), Content: m.Content, CreatedAt: m.CreatedAt.UTC()}
}

// Create inserts a new account document.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := accountDocument{
		ID:                 primitive.NewObjectID(),
		Username:           a.Username,
		UsernameLower:      domain.FoldUsername(a.Username),
		Email:              domain.NormalizeEmail(a.Email),
		PasswordHash:       a.PasswordHash,
		VerifyCode:         a.VerifyCode,
		VerifyCodeExpiry:   a.VerifyCodeExpiry,
		IsVerified:         a.IsVerified,
		IsAcceptingMessage: a.IsAcceptingMessage,
		Messages:           []messageDocument{},
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, mapWriteError("insert account", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByUsernameFold goes through the unique username_lower index.
func (r *AccountRepository) FindByUsernameFold(ctx context.Context, username string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"username_lower": domain.FoldUsername(username)})
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": domain.NormalizeEmail(identifier)},
	}})
}

func (r *AccountRepository) FindByUsernameAndEmail(ctx context.Context, username, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"username": username, "email": domain.NormalizeEmail(email)})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

// ReplaceRegistration overwrites the credentials of an account that is still
// unverified. A verified account is never touched.
func (r *AccountRepository) ReplaceRegistration(ctx context.Context, id, username, passwordHash, code string, expiry time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	return r.updateOne(ctx, "replace registration",
		bson.M{"_id": oid, "is_verified": false},
		bson.M{"$set": bson.M{
			"username":           username,
			"username_lower":     domain.FoldUsername(username),
			"password_hash":      passwordHash,
			"verify_code":        code,
			"verify_code_expiry": expiry,
			"updated_at":         time.Now().UTC(),
		}},
		domain.ErrAccountNotFound,
	)
}

func (r *AccountRepository) DeleteUnverified(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid, "is_verified": false})
	if err != nil {
		return fmt.Errorf("delete unverified: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) SetVerificationCode(ctx context.Context, id, code string, expiry time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	return r.updateOne(ctx, "set verification code",
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"verify_code":        code,
			"verify_code_expiry": expiry,
			"updated_at":         time.Now().UTC(),
		}},
		domain.ErrAccountNotFound,
	)
}

// RedeemCode consumes code in a single conditional update. The filter repeats
// the code and expiry checks so two concurrent redemptions cannot both match.
func (r *AccountRepository) RedeemCode(ctx context.Context, id, code string, now time.Time, change ports.CodeRedemption) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidCode
	}

	set := bson.M{
		"verify_code":        domain.ConsumedCode,
		"verify_code_expiry": time.Unix(0, 0).UTC(),
		"updated_at":         now,
	}
	if change.MarkVerified {
		set["is_verified"] = true
	}
	if change.PasswordHash != "" {
		set["password_hash"] = change.PasswordHash
	}

	return r.updateOne(ctx, "redeem code",
		bson.M{"_id": oid, "verify_code": code, "verify_code_expiry": bson.M{"$gt": now}},
		bson.M{"$set": set},
		domain.ErrInvalidCode,
	)
}

func (r *AccountRepository) SetAcceptingMessages(ctx context.Context, id string, accept bool) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDocument
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"is_accepting_message": accept, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("set accepting messages: %w", err)
	}
	return doc.toDomain(), nil
}

// AppendMessage pushes msg onto the account's inbox and assigns its id.
func (r *AccountRepository) AppendMessage(ctx context.Context, accountID string, msg *domain.Message) error {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	doc := messageDocument{ID: primitive.NewObjectID(), Content: msg.Content, CreatedAt: msg.CreatedAt}
	if err := r.updateOne(ctx, "append message",
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"messages": doc}},
		domain.ErrAccountNotFound,
	); err != nil {
		return err
	}
	msg.ID = doc.ID.Hex()
	return nil
}

// ListMessages returns the inbox in insertion order.
func (r *AccountRepository) ListMessages(ctx context.Context, accountID string) ([]domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDocument
	opts := options.FindOne().SetProjection(bson.M{"messages": 1})
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]domain.Message, len(doc.Messages))
	for i, m := range doc.Messages {
		msgs[i] = m.toDomain()
	}
	return msgs, nil
}

// DeleteMessage pulls one message out of the owner's inbox. Pulling a message
// that is not there still succeeds as long as the account exists.
func (r *AccountRepository) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	mid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return domain.ErrInvalidMessageID
	}
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	return r.updateOne(ctx, "delete message",
		bson.M{"_id": oid},
		bson.M{"$pull": bson.M{"messages": bson.M{"_id": mid}}},
		domain.ErrAccountNotFound,
	)
}

func (r *AccountRepository) updateOne(ctx context.Context, op string, filter, update bson.M, notMatched error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapWriteError(op, err)
	}
	if res.MatchedCount == 0 {
		return notMatched
	}
	return nil
}

// EnsureIndexes creates the unique username and email indexes.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username_lower", Value: 1}},
			Options: options.Index().SetName(indexUsernameLower).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(indexEmail).SetUnique(true),
		},
		{Keys: bson.D{{Key: "username", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// mapWriteError turns a duplicate-key failure into the matching conflict error.
func mapWriteError(op string, err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch msg := err.Error(); {
	case strings.Contains(msg, indexUsernameLower):
		return domain.ErrUsernameTaken
	case strings.Contains(msg, indexEmail):
		return domain.ErrEmailTaken
	default:
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
}
