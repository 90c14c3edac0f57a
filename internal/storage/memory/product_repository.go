package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory — простая in-memory реализация ProductRepository.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий каталога
// для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет новый товар, если ID ещё не занят.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.ErrProductVersionConflict
	}
	r.items[product.ID] = cloneProduct(product)
	return nil
}

// Get возвращает товар или ErrProductNotFound, если его нет.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

// List возвращает все товары каталога.
func (r *productRepositoryInMemory) List() ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		result = append(result, cloneProduct(product))
	}
	return result, nil
}

// Save перезаписывает товар, проверяя версию (optimistic locking).
func (r *productRepositoryInMemory) Save(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if current.Version != product.Version {
		return domain.ErrProductVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	product.Version++
	r.items[product.ID] = cloneProduct(product)
	return nil
}

// Delete удаляет товар из каталога.
func (r *productRepositoryInMemory) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.items, id)
	return nil
}

// AdjustStock атомарно изменяет сток под мьютексом: проверка и запись
// выполняются в одной критической секции, поэтому параллельные заказы
// на один товар не могут продать больше, чем есть на складе.
func (r *productRepositoryInMemory) AdjustStock(id string, delta int32) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	next := product.Stock + delta
	if next < 0 {
		return domain.Product{}, &domain.InsufficientStockError{
			ProductID: id,
			Requested: -delta,
			Available: product.Stock,
		}
	}

	product.Stock = next
	r.items[id] = product
	return cloneProduct(product), nil
}

// cloneProduct копирует товар вместе с вложенными срезами,
// чтобы избежать непредсказуемых мутаций извне.
func cloneProduct(src domain.Product) domain.Product {
	dst := src
	if src.Images != nil {
		dst.Images = append([]domain.ProductImage(nil), src.Images...)
	}
	if src.Discount != nil {
		d := *src.Discount
		dst.Discount = &d
	}
	return dst
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
