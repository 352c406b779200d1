//go:build integration

package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront-api/internal/testutil"
)

func TestRepository(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	db := testutil.Postgres(ctx, t)
	repo := NewRepository(db)

	t.Run("add twice increments one line", func(t *testing.T) {
		user := testutil.CreateUser(ctx, t, db)
		product := testutil.CreateProduct(ctx, t, db, "A", "25.00")

		if _, err := repo.Add(ctx, user, product, 1); err != nil {
			t.Fatalf("first Add: %v", err)
		}
		item, err := repo.Add(ctx, user, product, 2)
		if err != nil {
			t.Fatalf("second Add: %v", err)
		}
		if item.Quantity != 3 {
			t.Errorf("expected quantity 3, got %d", item.Quantity)
		}
		if item.Product == nil || item.Product.Name != "A" {
			t.Errorf("expected joined product, got %+v", item.Product)
		}

		items, err := repo.List(ctx, user)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 1 {
			t.Errorf("expected 1 line, got %d", len(items))
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		user := testutil.CreateUser(ctx, t, db)

		_, err := repo.Add(ctx, user, uuid.New().String(), 1)
		if !errors.Is(err, ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("accumulated quantity above limit is rejected", func(t *testing.T) {
		user := testutil.CreateUser(ctx, t, db)
		product := testutil.CreateProduct(ctx, t, db, "A", "25.00")

		item, err := repo.Add(ctx, user, product, 9000)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if _, err := repo.Add(ctx, user, product, 1000); !errors.Is(err, ErrQuantityLimit) {
			t.Fatalf("expected ErrQuantityLimit, got %v", err)
		}
		if _, err := repo.UpdateQuantity(ctx, user, item.ID, 10000); !errors.Is(err, ErrQuantityLimit) {
			t.Fatalf("expected ErrQuantityLimit on update, got %v", err)
		}

		items, err := repo.List(ctx, user)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 1 || items[0].Quantity != 9000 {
			t.Errorf("expected a single line of 9000, got %+v", items)
		}
	})

	t.Run("concurrent adds keep every increment", func(t *testing.T) {
		user := testutil.CreateUser(ctx, t, db)
		product := testutil.CreateProduct(ctx, t, db, "B", "1.00")

		const adds = 10
		var g errgroup.Group
		for range adds {
			g.Go(func() error {
				_, err := repo.Add(ctx, user, product, 1)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("concurrent Add: %v", err)
		}

		items, err := repo.List(ctx, user)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 1 || items[0].Quantity != adds {
			t.Errorf("expected one line with quantity %d, got %+v", adds, items)
		}
	})

	t.Run("update remove and clear are scoped to the owner", func(t *testing.T) {
		owner := testutil.CreateUser(ctx, t, db)
		stranger := testutil.CreateUser(ctx, t, db)
		a := testutil.CreateProduct(ctx, t, db, "A", "2.00")
		b := testutil.CreateProduct(ctx, t, db, "B", "3.00")

		item, err := repo.Add(ctx, owner, a, 1)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if _, err := repo.Add(ctx, owner, b, 1); err != nil {
			t.Fatalf("Add: %v", err)
		}

		if got, err := repo.UpdateQuantity(ctx, stranger, item.ID, 9); err != nil || got != nil {
			t.Fatalf("stranger update: got %+v, %v", got, err)
		}
		updated, err := repo.UpdateQuantity(ctx, owner, item.ID, 4)
		if err != nil || updated == nil || updated.Quantity != 4 {
			t.Fatalf("owner update: got %+v, %v", updated, err)
		}

		if removed, err := repo.Remove(ctx, stranger, item.ID); err != nil || removed {
			t.Fatalf("stranger remove: got %v, %v", removed, err)
		}
		if removed, err := repo.Remove(ctx, owner, item.ID); err != nil || !removed {
			t.Fatalf("owner remove: got %v, %v", removed, err)
		}

		if err := repo.Clear(ctx, owner); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		items, err := repo.List(ctx, owner)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected empty cart, got %d lines", len(items))
		}
	})
}
