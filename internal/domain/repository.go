package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя, новые первыми,
	// с опциональным ограничением на количество.
	ListByBuyer(buyerID string, limit int) ([]Order, error)
	// ListAll возвращает все заказы (админский обзор), новые первыми.
	ListAll(limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// Delete удаляет заказ. Используется компенсацией при неудачном
	// списании стока после создания записи.
	Delete(id string) error
}

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	// Create сохраняет новый товар.
	Create(product Product) error
	// Get возвращает товар или ErrProductNotFound, если его нет.
	Get(id string) (Product, error)
	// List возвращает все товары каталога.
	List() ([]Product, error)
	// Save применяет обновления к товару с учётом optimistic locking.
	Save(product Product) error
	// Delete удаляет товар из каталога.
	Delete(id string) error
	// AdjustStock атомарно изменяет сток на delta. Отрицательная delta
	// применяется только если итоговый сток неотрицателен, иначе
	// возвращается InsufficientStockError. Инкремент безусловен.
	AdjustStock(id string, delta int32) (Product, error)
}

// UserRepository описывает требования к хранилищу аккаунтов.
type UserRepository interface {
	// Create сохраняет новый аккаунт; занятый email даёт ErrEmailTaken.
	Create(user User) error
	// Get возвращает аккаунт или ErrUserNotFound.
	Get(id string) (User, error)
	// GetByEmail ищет аккаунт по email или возвращает ErrUserNotFound.
	GetByEmail(email string) (User, error)
	// Save применяет обновления профиля.
	Save(user User) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
