package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/videotube/account-service/internal/core/domain"
)

const testNS = "videotube.users"

func userDoc(id primitive.ObjectID, refresh string) bson.D {
	doc := bson.D{
		{Key: "_id", Value: id},
		{Key: "full_name", Value: "Ada Lovelace"},
		{Key: "username", Value: "ada"},
		{Key: "email", Value: "ada@x.com"},
		{Key: "password_hash", Value: "$2a$10$hash"},
		{Key: "avatar_url", Value: "https://cdn.test/avatars/ada.png"},
		{Key: "created_at", Value: time.Now()},
		{Key: "updated_at", Value: time.Now()},
	}
	if refresh != "" {
		doc = append(doc, bson.E{Key: "refresh_token", Value: refresh})
	}
	return doc
}

func updateResponse(matched int) bson.D {
	return bson.D{
		{Key: "ok", Value: 1},
		{Key: "n", Value: matched},
		{Key: "nModified", Value: matched},
	}
}

func TestUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u, err := repo.Create(context.Background(), &domain.User{
			FullName: "Ada Lovelace", Username: "ada", Email: "ada@x.com", PasswordHash: "h",
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := primitive.ObjectIDFromHex(u.ID); err != nil {
			t.Fatalf("expected an object id, got %q", u.ID)
		}
		if u.RefreshToken != "" {
			t.Fatalf("refresh token must be empty at creation")
		}
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		_, err := repo.Create(context.Background(), &domain.User{Username: "ada", Email: "ada@x.com"})
		if !errors.Is(err, domain.ErrUserExists) {
			t.Fatalf("expected ErrUserExists, got %v", err)
		}
	})

	mt.Run("find by identifier", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, userDoc(id, "tok")))

		u, err := repo.FindByIdentifier(context.Background(), "ada", "ada")
		if err != nil {
			t.Fatalf("FindByIdentifier: %v", err)
		}
		if u.ID != id.Hex() || u.Username != "ada" || u.RefreshToken != "tok" {
			t.Fatalf("unexpected user: %+v", u)
		}
	})

	mt.Run("find missing", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch))

		if _, err := repo.FindByIdentifier(context.Background(), "ghost", "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("find by malformed id", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)

		if _, err := repo.FindByID(context.Background(), "not-an-object-id"); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("swap matched", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(updateResponse(1))

		if err := repo.SwapRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "", "next"); err != nil {
			t.Fatalf("SwapRefreshToken: %v", err)
		}
	})

	mt.Run("swap conflict", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(
			updateResponse(0),
			mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		err := repo.SwapRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "stale", "next")
		if !errors.Is(err, domain.ErrRefreshTokenConflict) {
			t.Fatalf("expected ErrRefreshTokenConflict, got %v", err)
		}
	})

	mt.Run("swap missing user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(
			updateResponse(0),
			mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch),
		)

		err := repo.SwapRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "", "next")
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("clear", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(updateResponse(1))

		if err := repo.ClearRefreshToken(context.Background(), primitive.NewObjectID().Hex()); err != nil {
			t.Fatalf("ClearRefreshToken: %v", err)
		}
	})

	mt.Run("clear missing user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(updateResponse(0))

		if err := repo.ClearRefreshToken(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}
