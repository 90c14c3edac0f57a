package memory_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newProduct() domain.Product {
	now := time.Now().UTC()
	return domain.Product{
		ID:                 "product-1",
		Name:               "Чайник",
		Description:        "Эмалированный, 2 литра",
		Category:           "kitchen",
		PriceMinor:         1000,
		OriginalPriceMinor: 1000,
		Stock:              5,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestProductRepository_CreateGet(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()

	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != product.ID || stored.Stock != 5 {
		t.Fatalf("unexpected stored product: %+v", stored)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_AdjustStock(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := repo.AdjustStock("product-1", -3)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if updated.Stock != 2 {
		t.Fatalf("expected stock 2, got %d", updated.Stock)
	}

	// Запрос сверх остатка отклоняется и не меняет сток.
	if _, err := repo.AdjustStock("product-1", -3); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	stored, err := repo.Get("product-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 2 {
		t.Fatalf("failed adjust must not mutate stock, got %d", stored.Stock)
	}

	// Возврат стока безусловен.
	restored, err := repo.AdjustStock("product-1", 3)
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if restored.Stock != 5 {
		t.Fatalf("expected stock 5 after restock, got %d", restored.Stock)
	}
}

// Параллельные списания не должны продать больше, чем есть на складе.
func TestProductRepository_AdjustStock_NoOversell(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()
	product.Stock = 10
	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const workers = 25

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AdjustStock("product-1", -1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful decrements, got %d", succeeded)
	}

	stored, err := repo.Get("product-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 0 {
		t.Fatalf("expected stock 0 after oversell race, got %d", stored.Stock)
	}
}

func TestProductRepository_Save_VersionConflict(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get("product-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	stored.PriceMinor = 900
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Повторное сохранение со старой версией отклоняется.
	if err := repo.Save(stored); !errors.Is(err, domain.ErrProductVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestProductRepository_Delete(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.Delete("product-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := repo.Delete("product-1"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
