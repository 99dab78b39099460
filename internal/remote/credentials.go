package remote

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Credential is a login credential document, keyed by email so login can look
// it up without knowing the user ID.
type Credential struct {
	Email        string `bson:"_id"`
	UserID       string `bson:"userId"`
	PasswordHash string `bson:"passwordHash"`
	CreatedAt    int64  `bson:"createdAt"`
}

// ErrEmailTaken is returned by [CredentialStore.Create] when the email is
// already registered.
var ErrEmailTaken = errors.New("email already in use")

// CredentialStore provides access to the remote "credentials" collection.
type CredentialStore struct {
	coll *mongo.Collection
}

// GetByEmail returns the credential for the given email, or (nil, nil) if no
// account exists.
func (c *CredentialStore) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	var cred Credential
	err := c.coll.FindOne(ctx, bson.M{"_id": email}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("fetching credential for %q: %w", email, err)
	}
	return &cred, nil
}

// Create inserts a new credential. The email primary key makes duplicate
// signups fail with [ErrEmailTaken].
func (c *CredentialStore) Create(ctx context.Context, cred *Credential) error {
	_, err := c.coll.InsertOne(ctx, cred)
	if mongo.IsDuplicateKeyError(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("creating credential for %q: %w", cred.Email, err)
	}
	return nil
}

// Delete removes the credential for the given email.
func (c *CredentialStore) Delete(ctx context.Context, email string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": email}); err != nil {
		return fmt.Errorf("deleting credential for %q: %w", email, err)
	}
	return nil
}
