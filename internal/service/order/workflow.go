package order

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// PlaceOrderItem — запрошенная позиция чекаута. Цена не принимается
// снаружи: она снимается с карточки товара в момент оформления.
type PlaceOrderItem struct {
	ProductID string
	Qty       int32
}

// PlaceOrderInput — входные данные оформления заказа.
type PlaceOrderInput struct {
	BuyerID         string
	Items           []PlaceOrderItem
	ShippingAddress domain.ShippingAddress
	Payment         domain.PaymentInfo
}

// Workflow реализует оформление, отмену и смену статусов заказов.
// Списание стока и компенсация при неудаче держат инвариант stock >= 0.
type Workflow struct {
	orders        domain.OrderRepository
	products      domain.ProductRepository
	timeline      domain.TimelineRepository
	outbox        domain.OutboxRepository
	logger        *log.Entry
	metrics       *metrics.OrderMetrics
	kafkaProducer *kafka.Producer // опциональный Kafka producer для event-driven архитектуры
}

// NewWorkflow создаёт рабочий экземпляр workflow заказов.
func NewWorkflow(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Workflow {
	if logger == nil {
		logger = log.New().WithField("component", "order-workflow")
	}
	return &Workflow{
		orders:   orders,
		products: products,
		timeline: timeline,
		outbox:   outbox,
		logger:   logger,
		metrics:  metrics.NewOrderMetrics(),
	}
}

// NewWorkflowWithKafka создаёт workflow с Kafka producer для event-driven архитектуры.
func NewWorkflowWithKafka(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *Workflow {
	if logger == nil {
		logger = log.New().WithField("component", "order-workflow")
	}
	return &Workflow{
		orders:        orders,
		products:      products,
		timeline:      timeline,
		outbox:        outbox,
		logger:        logger,
		metrics:       metrics.NewOrderMetrics(),
		kafkaProducer: kafkaProducer,
	}
}

// NewWorkflowWithoutMetrics создаёт workflow без метрик (для тестов).
func NewWorkflowWithoutMetrics(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Workflow {
	if logger == nil {
		logger = log.New().WithField("component", "order-workflow")
	}
	return &Workflow{
		orders:   orders,
		products: products,
		timeline: timeline,
		outbox:   outbox,
		logger:   logger,
		metrics:  nil, // Отключаем метрики для тестов
	}
}

// PlaceOrder оформляет заказ: проверяет наличие товаров, снимает snapshot цен,
// создаёт запись заказа и атомарно списывает сток по каждой позиции.
// Если списание сорвалось, уже списанный сток возвращается и заказ удаляется.
func (w *Workflow) PlaceOrder(input PlaceOrderInput) (domain.Order, error) {
	start := time.Now()
	if w.metrics != nil {
		w.metrics.RecordInFlightStarted()
	}
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordInFlightFinished()
			w.metrics.RecordPlaceDuration(time.Since(start))
		}
	}()

	if err := validatePlaceInput(input); err != nil {
		w.recordRejection(metrics.RejectReasonValidation)
		return domain.Order{}, err
	}

	// Суммируем количество по товару: дубли позиций не должны
	// обходить проверку стока.
	requested := make(map[string]int32, len(input.Items))
	orderProduct := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		if _, seen := requested[item.ProductID]; !seen {
			orderProduct = append(orderProduct, item.ProductID)
		}
		requested[item.ProductID] += item.Qty
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(input.Items))
	var amountMinor int64
	for _, item := range input.Items {
		product, err := w.products.Get(item.ProductID)
		if err != nil {
			if domain.IsNotFound(err) {
				w.recordRejection(metrics.RejectReasonNotFound)
			} else {
				w.recordRejection(metrics.RejectReasonStorage)
			}
			w.logger.WithError(err).WithField("product_id", item.ProductID).Warn("product lookup failed")
			return domain.Order{}, err
		}
		if product.Stock < requested[item.ProductID] {
			w.recordRejection(metrics.RejectReasonInsufficientStock)
			return domain.Order{}, &domain.InsufficientStockError{
				ProductID: product.ID,
				Requested: requested[item.ProductID],
				Available: product.Stock,
			}
		}

		// Snapshot текущей цены: последующая смена цены или скидки
		// не влияет на уже оформленный заказ.
		items = append(items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  product.ID,
			Qty:        item.Qty,
			PriceMinor: product.PriceMinor,
			CreatedAt:  now,
		})
		amountMinor += int64(item.Qty) * product.PriceMinor
	}

	payment := input.Payment
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusPending
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		BuyerID:         input.BuyerID,
		Status:          domain.OrderStatusPending,
		Items:           items,
		ShippingAddress: input.ShippingAddress,
		PaymentInfo:     payment,
		AmountMinor:     amountMinor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		w.recordRejection(metrics.RejectReasonValidation)
		return domain.Order{}, errors.Join(errs...)
	}

	if err := w.orders.Create(order); err != nil {
		w.recordRejection(metrics.RejectReasonStorage)
		w.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		return domain.Order{}, err
	}

	// Списываем сток по каждому товару. AdjustStock проверяет остаток
	// атомарно, поэтому параллельные заказы не уводят сток в минус.
	decremented := make([]string, 0, len(orderProduct))
	for _, productID := range orderProduct {
		if _, err := w.products.AdjustStock(productID, -requested[productID]); err != nil {
			w.compensatePlacement(order.ID, requested, decremented)
			if errors.Is(err, domain.ErrInsufficientStock) {
				w.recordRejection(metrics.RejectReasonInsufficientStock)
			} else {
				w.recordRejection(metrics.RejectReasonStorage)
			}
			w.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": productID,
			}).Warn("stock decrement failed, placement rolled back")
			return domain.Order{}, err
		}
		decremented = append(decremented, productID)
	}

	w.emitEvent(&order, domain.TimelineEventOrderPlaced, map[string]interface{}{
		"buyer_id":     order.BuyerID,
		"amount_minor": order.AmountMinor,
		"items_count":  len(order.Items),
		"ts":           now.Format(time.RFC3339Nano),
	})
	if w.metrics != nil {
		w.metrics.RecordOrderPlaced()
	}
	w.publishOrderEvent(kafka.EventTypeOrderPlaced, &order, map[string]interface{}{
		"amount":      domain.MoneyString(order.AmountMinor),
		"items_count": len(order.Items),
	})

	w.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"buyer_id":     order.BuyerID,
		"amount_minor": order.AmountMinor,
	}).Info("order placed")

	return order, nil
}

// compensatePlacement возвращает уже списанный сток и удаляет запись заказа.
func (w *Workflow) compensatePlacement(orderID string, requested map[string]int32, decremented []string) {
	for _, productID := range decremented {
		if _, err := w.products.AdjustStock(productID, requested[productID]); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": productID,
			}).Error("compensation restock failed")
		}
	}
	if err := w.orders.Delete(orderID); err != nil {
		w.logger.WithError(err).WithField("order_id", orderID).Error("compensation order delete failed")
	}
}

// compensateRestock снимает обратно сток, возвращённый незавершённой отменой,
// чтобы повторная отмена не вернула его второй раз.
func (w *Workflow) compensateRestock(orderID string, items []domain.OrderItem) {
	for _, item := range items {
		if _, err := w.products.AdjustStock(item.ProductID, -item.Qty); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": item.ProductID,
			}).Error("cancel compensation failed")
		}
	}
}

// Cancel отменяет заказ и возвращает сток на склад.
// Покупатель может отменить только свой заказ; администратор — любой,
// при этом markPaymentFailed дополнительно помечает оплату как failed.
func (w *Workflow) Cancel(orderID, requesterID string, role domain.Role, reason string, markPaymentFailed bool) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordCancelDuration(time.Since(start))
		}
	}()

	order, err := w.orders.Get(orderID)
	if err != nil {
		w.logger.WithError(err).WithField("order_id", orderID).Warn("order not found for cancel")
		return domain.Order{}, err
	}

	if role != domain.RoleAdmin && order.BuyerID != requesterID {
		return domain.Order{}, domain.ErrNotAuthorized
	}
	if !order.Status.Cancellable() {
		return domain.Order{}, domain.ErrOrderNotCancellable
	}

	// Возвращаем сток на склад. Товар мог быть удалён из каталога после
	// покупки: такие позиции пропускаются с предупреждением. Любая другая
	// ошибка возврата прерывает отмену, уже сделанный возврат снимается
	// обратно — заказ остаётся pending и отмену можно повторить целиком.
	var restocked []domain.OrderItem
	var restored int64
	for _, item := range order.Items {
		if _, err := w.products.AdjustStock(item.ProductID, item.Qty); err != nil {
			if domain.IsNotFound(err) {
				w.logger.WithError(err).WithFields(log.Fields{
					"order_id":   order.ID,
					"product_id": item.ProductID,
				}).Warn("product missing on cancel restock, skipping")
				continue
			}
			w.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Error("restock on cancel failed")
			w.compensateRestock(order.ID, restocked)
			return domain.Order{}, err
		}
		restocked = append(restocked, item)
		restored += int64(item.Qty)
	}

	mutate := func(o *domain.Order) {
		o.Status = domain.OrderStatusCancelled
		if markPaymentFailed {
			o.PaymentInfo.Status = domain.PaymentStatusFailed
		}
	}
	if err := w.saveWithRetry(&order, mutate); err != nil {
		w.compensateRestock(order.ID, restocked)
		return domain.Order{}, err
	}
	if w.metrics != nil {
		w.metrics.RecordStockRestored(restored)
	}

	payload := map[string]interface{}{
		"ts": order.UpdatedAt.Format(time.RFC3339Nano),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	w.emitEvent(&order, domain.TimelineEventOrderCancelled, payload)
	if w.metrics != nil {
		w.metrics.RecordOrderCanceled()
	}
	w.publishOrderEvent(kafka.EventTypeOrderCancelled, &order, map[string]interface{}{
		"reason": reason,
	})

	w.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"buyer_id": order.BuyerID,
	}).Info("order cancelled")

	return order, nil
}

// UpdateStatus переводит заказ в новый статус. Переход в произвольный
// валидный статус разрешён: откат статуса остаётся админским инструментом.
func (w *Workflow) UpdateStatus(orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrOrderStatusInvalid
	}

	order, err := w.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == status {
		return order, nil
	}

	if err := w.saveWithRetry(&order, func(o *domain.Order) {
		o.Status = status
	}); err != nil {
		return domain.Order{}, err
	}

	w.emitEvent(&order, domain.TimelineEventOrderStatusChanged, map[string]interface{}{
		"status": string(order.Status),
		"ts":     order.UpdatedAt.Format(time.RFC3339Nano),
	})
	w.publishOrderEvent(kafka.EventTypeOrderStatusChanged, &order, nil)

	return order, nil
}

// Get возвращает заказ с проверкой прав: покупатель видит только свои заказы.
func (w *Workflow) Get(orderID, requesterID string, role domain.Role) (domain.Order, error) {
	order, err := w.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if role != domain.RoleAdmin && order.BuyerID != requesterID {
		return domain.Order{}, domain.ErrNotAuthorized
	}
	return order, nil
}

// ListByBuyer возвращает заказы покупателя, новые первыми.
func (w *Workflow) ListByBuyer(buyerID string, limit int) ([]domain.Order, error) {
	return w.orders.ListByBuyer(buyerID, limit)
}

// ListAll возвращает все заказы (админский обзор).
func (w *Workflow) ListAll(limit int) ([]domain.Order, error) {
	return w.orders.ListAll(limit)
}

// Timeline возвращает историю событий заказа с той же проверкой прав, что и Get.
func (w *Workflow) Timeline(orderID, requesterID string, role domain.Role) ([]domain.TimelineEvent, error) {
	if _, err := w.Get(orderID, requesterID, role); err != nil {
		return nil, err
	}
	return w.timeline.List(orderID)
}

func validatePlaceInput(input PlaceOrderInput) error {
	var errs []error
	if input.BuyerID == "" {
		errs = append(errs, domain.ErrBuyerRequired)
	}
	if len(input.Items) == 0 {
		errs = append(errs, domain.ErrItemsRequired)
	}
	for _, item := range input.Items {
		if item.ProductID == "" {
			errs = append(errs, domain.ErrProductNotFound)
		}
		if item.Qty <= 0 {
			errs = append(errs, domain.ErrItemQtyInvalid)
			break
		}
	}
	if !input.Payment.Method.Valid() {
		errs = append(errs, domain.ErrPaymentMethodInvalid)
	}
	errs = append(errs, input.ShippingAddress.Validate()...)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// saveWithRetry применяет mutate и сохраняет заказ, перечитывая его при
// конфликте версий. Реализует retry с exponential backoff.
func (w *Workflow) saveWithRetry(order *domain.Order, mutate func(*domain.Order)) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		mutate(order)
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := w.orders.Save(*order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				w.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := w.orders.Get(order.ID)
				if loadErr != nil {
					w.logger.WithError(loadErr).WithField("order_id", order.ID).Error("failed to reload order after conflict")
					return loadErr
				}
				*order = fresh

				delay := baseDelay * time.Duration(1<<uint(attempt))
				time.Sleep(delay)
				continue
			}

			w.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist order update")
			return err
		}

		order.Version = prevVersion + 1
		return nil
	}

	return domain.ErrOrderVersionConflict
}

// emitEvent пишет событие в transactional outbox и историю заказа.
func (w *Workflow) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := w.outbox.Enqueue(msg); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if w.metrics != nil {
		w.metrics.RecordOutboxEvent()
	}

	if w.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		occurred := time.Now().UTC()
		if ts, ok := payload["ts"].(string); ok {
			if parsed, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
				occurred = parsed
			}
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: occurred,
		}
		if err := w.timeline.Append(event); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if w.metrics != nil {
			w.metrics.RecordTimelineEvent()
		}
	}
}

// publishOrderEvent публикует событие заказа в Kafka (если producer настроен)
func (w *Workflow) publishOrderEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if w.kafkaProducer == nil {
		return // Kafka не настроен, пропускаем
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.BuyerID, string(order.Status), metadata)
	if err := w.kafkaProducer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		// Логируем ошибку, но не прерываем обработку - Kafka опциональный
		w.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

func (w *Workflow) recordRejection(reason string) {
	if w.metrics != nil {
		w.metrics.RecordOrderRejected(reason)
	}
}
