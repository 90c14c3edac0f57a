package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// AddProductInput — данные новой карточки товара.
type AddProductInput struct {
	Name        string
	Description string
	Category    string
	Brand       string
	Images      []domain.ProductImage
	PriceMinor  int64
	Stock       int32
}

// UpdateProductInput — частичное обновление карточки. nil-поле означает "не менять".
type UpdateProductInput struct {
	Name        *string
	Description *string
	Category    *string
	Brand       *string
	Images      []domain.ProductImage
	// PriceMinor задаёт новую базовую цену. Активная скидка пересчитывается
	// от неё, поэтому текущая цена тоже меняется.
	PriceMinor *int64
}

// Service управляет каталогом: карточками товаров, стоком и скидками.
type Service struct {
	products      domain.ProductRepository
	logger        *log.Entry
	kafkaProducer *kafka.Producer
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{products: products, logger: logger}
}

// NewServiceWithKafka создаёт сервис каталога с публикацией событий в Kafka.
func NewServiceWithKafka(products domain.ProductRepository, kafkaProducer *kafka.Producer, logger *log.Entry) *Service {
	svc := NewService(products, logger)
	svc.kafkaProducer = kafkaProducer
	return svc
}

// AddProduct создаёт карточку товара. Базовая цена совпадает с текущей:
// скидок на новый товар ещё нет.
func (s *Service) AddProduct(input AddProductInput) (domain.Product, error) {
	now := time.Now().UTC()
	product := domain.Product{
		ID:                 uuid.NewString(),
		Name:               input.Name,
		Description:        input.Description,
		Category:           input.Category,
		Brand:              input.Brand,
		Images:             input.Images,
		PriceMinor:         input.PriceMinor,
		OriginalPriceMinor: input.PriceMinor,
		Stock:              input.Stock,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.products.Create(product); err != nil {
		s.logger.WithError(err).WithField("product_id", product.ID).Error("failed to create product")
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("product added to catalog")

	return product, nil
}

// UpdateProduct применяет частичное обновление карточки.
func (s *Service) UpdateProduct(productID string, input UpdateProductInput) (domain.Product, error) {
	if input.Name == nil && input.Description == nil && input.Category == nil &&
		input.Brand == nil && input.Images == nil && input.PriceMinor == nil {
		return domain.Product{}, domain.ErrNoFieldsToUpdate
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return domain.Product{}, err
	}

	mutate := func(p *domain.Product) {
		if input.Name != nil {
			p.Name = *input.Name
		}
		if input.Description != nil {
			p.Description = *input.Description
		}
		if input.Category != nil {
			p.Category = *input.Category
		}
		if input.Brand != nil {
			p.Brand = *input.Brand
		}
		if input.Images != nil {
			p.Images = input.Images
		}
		if input.PriceMinor != nil {
			p.OriginalPriceMinor = *input.PriceMinor
			p.PriceMinor = effectivePrice(p.OriginalPriceMinor, p.Discount)
		}
	}
	mutate(&product)
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.saveWithRetry(&product, mutate); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// RemoveProduct удаляет товар из каталога. Уже оформленные заказы хранят
// snapshot цены, удаление их не затрагивает.
func (s *Service) RemoveProduct(productID string) error {
	if err := s.products.Delete(productID); err != nil {
		return err
	}

	s.publishCatalogEvent(kafka.EventTypeProductRemoved, productID, nil)
	s.logger.WithField("product_id", productID).Info("product removed from catalog")
	return nil
}

// Get возвращает карточку товара.
func (s *Service) Get(productID string) (domain.Product, error) {
	return s.products.Get(productID)
}

// List возвращает весь каталог.
func (s *Service) List() ([]domain.Product, error) {
	return s.products.List()
}

// Restock изменяет сток товара на delta (приёмка или списание брака).
// Отрицательная delta не может увести сток ниже нуля.
func (s *Service) Restock(productID string, delta int32) (domain.Product, error) {
	product, err := s.products.AdjustStock(productID, delta)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"delta":      delta,
		"stock":      product.Stock,
	}).Info("product stock adjusted")

	return product, nil
}

// ApplyDiscount устанавливает скидку и пересчитывает текущую цену от базовой.
// Неактивная или нулевая скидка возвращает цену к базовой.
func (s *Service) ApplyDiscount(productID string, discount domain.Discount) (domain.Product, error) {
	if errs := discount.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return domain.Product{}, err
	}

	mutate := func(p *domain.Product) {
		d := discount
		p.Discount = &d
		p.PriceMinor = effectivePrice(p.OriginalPriceMinor, p.Discount)
	}
	mutate(&product)

	if err := s.saveWithRetry(&product, mutate); err != nil {
		return domain.Product{}, err
	}

	s.publishCatalogEvent(kafka.EventTypeProductDiscounted, product.ID, map[string]interface{}{
		"percentage": discount.Percentage,
		"active":     discount.IsActive,
		"price":      domain.MoneyString(product.PriceMinor),
	})

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"percentage": discount.Percentage,
		"active":     discount.IsActive,
	}).Info("discount applied")

	return product, nil
}

// RemoveDiscount снимает скидку и возвращает цену к базовой.
func (s *Service) RemoveDiscount(productID string) (domain.Product, error) {
	product, err := s.products.Get(productID)
	if err != nil {
		return domain.Product{}, err
	}

	mutate := func(p *domain.Product) {
		p.Discount = nil
		p.PriceMinor = p.OriginalPriceMinor
	}
	mutate(&product)

	if err := s.saveWithRetry(&product, mutate); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// effectivePrice считает текущую цену от базовой с учётом скидки.
func effectivePrice(originalMinor int64, discount *domain.Discount) int64 {
	if discount == nil || !discount.IsActive || discount.Percentage <= 0 {
		return originalMinor
	}
	return domain.DiscountedPriceMinor(originalMinor, discount.Percentage)
}

// saveWithRetry сохраняет товар, перечитывая его при конфликте версий.
func (s *Service) saveWithRetry(product *domain.Product, mutate func(*domain.Product)) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		product.UpdatedAt = time.Now().UTC()
		prevVersion := product.Version

		if err := s.products.Save(*product); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"product_id": product.ID,
					"attempt":    attempt + 1,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := s.products.Get(product.ID)
				if loadErr != nil {
					return loadErr
				}
				*product = fresh
				mutate(product)

				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}

			s.logger.WithError(err).WithField("product_id", product.ID).Error("failed to persist product")
			return err
		}

		product.Version = prevVersion + 1
		return nil
	}

	return domain.ErrProductVersionConflict
}

// publishCatalogEvent публикует событие каталога в Kafka (если producer настроен)
func (s *Service) publishCatalogEvent(eventType kafka.EventType, productID string, metadata map[string]interface{}) {
	if s.kafkaProducer == nil {
		return
	}

	event := kafka.NewCatalogEvent(eventType, productID, metadata)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicCatalogEvents, productID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"product_id": productID,
		}).Warn("failed to publish catalog event to kafka")
	}
}
