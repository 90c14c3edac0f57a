package order

import (
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// flakyProducts ломает списание стока для заданного товара,
// остальные вызовы проксирует в настоящий репозиторий.
type flakyProducts struct {
	domain.ProductRepository
	failID string
}

func (f *flakyProducts) AdjustStock(id string, delta int32) (domain.Product, error) {
	if id == f.failID && delta < 0 {
		return domain.Product{}, domain.ErrStorageUnavailable
	}
	return f.ProductRepository.AdjustStock(id, delta)
}

// unreliableOrders ломает Save заданное число раз, остальные вызовы
// проксирует в настоящий репозиторий.
type unreliableOrders struct {
	domain.OrderRepository
	saveFailures int
}

func (f *unreliableOrders) Save(order domain.Order) error {
	if f.saveFailures > 0 {
		f.saveFailures--
		return domain.ErrStorageUnavailable
	}
	return f.OrderRepository.Save(order)
}

// unreliableRestock ломает возврат стока (delta > 0) для заданного товара.
type unreliableRestock struct {
	domain.ProductRepository
	failID   string
	failures int
}

func (f *unreliableRestock) AdjustStock(id string, delta int32) (domain.Product, error) {
	if id == f.failID && delta > 0 && f.failures > 0 {
		f.failures--
		return domain.Product{}, domain.ErrStorageUnavailable
	}
	return f.ProductRepository.AdjustStock(id, delta)
}

func newTestWorkflow(products domain.ProductRepository) (*Workflow, domain.OrderRepository, domain.OutboxRepository, domain.TimelineRepository) {
	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	wf := NewWorkflowWithoutMetrics(orders, products, timeline, outbox, log.New().WithField("test", "workflow"))
	return wf, orders, outbox, timeline
}

func seedProduct(t *testing.T, repo domain.ProductRepository, id string, priceMinor int64, stock int32) {
	t.Helper()

	now := time.Now().UTC()
	err := repo.Create(domain.Product{
		ID:                 id,
		Name:               "Чайник гранёный",
		Description:        "Эмалированный, 3 литра",
		Category:           "kitchen",
		Brand:              "Заря",
		PriceMinor:         priceMinor,
		OriginalPriceMinor: priceMinor,
		Stock:              stock,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
}

func placeInput(buyerID string, items ...PlaceOrderItem) PlaceOrderInput {
	return PlaceOrderInput{
		BuyerID: buyerID,
		Items:   items,
		ShippingAddress: domain.ShippingAddress{
			Street:     "Невский проспект, 28",
			City:       "Санкт-Петербург",
			PostalCode: "191186",
			Country:    "RU",
		},
		Payment: domain.PaymentInfo{Method: domain.PaymentMethodCard},
	}
}

func TestWorkflow_PlaceOrder_Success(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)

	wf, orders, outbox, timeline := newTestWorkflow(products)

	order, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 3}))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", order.Status)
	}
	if order.AmountMinor != 3000 {
		t.Fatalf("expected amount 3000, got %d", order.AmountMinor)
	}
	if order.PaymentInfo.Status != domain.PaymentStatusPending {
		t.Fatalf("expected payment status pending, got %s", order.PaymentInfo.Status)
	}
	if len(order.Items) != 1 || order.Items[0].PriceMinor != 1000 {
		t.Fatalf("unexpected items snapshot: %+v", order.Items)
	}

	stored, err := orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get stored order: %v", err)
	}
	if stored.AmountMinor != 3000 {
		t.Fatalf("stored order amount mismatch: %d", stored.AmountMinor)
	}

	product, err := products.Get("product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 2 {
		t.Fatalf("expected stock 2 after placement, got %d", product.Stock)
	}

	pending, err := outbox.PullPending(0)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != domain.TimelineEventOrderPlaced {
		t.Fatalf("expected one OrderPlaced outbox event, got %+v", pending)
	}

	events, err := timeline.List(order.ID)
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.TimelineEventOrderPlaced {
		t.Fatalf("expected one OrderPlaced timeline event, got %+v", events)
	}
}

func TestWorkflow_PlaceOrder_ValidationErrors(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	wf, _, _, _ := newTestWorkflow(products)

	cases := []struct {
		name    string
		input   PlaceOrderInput
		wantErr error
	}{
		{
			name:    "missing buyer",
			input:   placeInput("", PlaceOrderItem{ProductID: "product-1", Qty: 1}),
			wantErr: domain.ErrBuyerRequired,
		},
		{
			name:    "no items",
			input:   placeInput("buyer-1"),
			wantErr: domain.ErrItemsRequired,
		},
		{
			name:    "zero qty",
			input:   placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 0}),
			wantErr: domain.ErrItemQtyInvalid,
		},
		{
			name: "bad payment method",
			input: PlaceOrderInput{
				BuyerID: "buyer-1",
				Items:   []PlaceOrderItem{{ProductID: "product-1", Qty: 1}},
				ShippingAddress: domain.ShippingAddress{
					Street: "Невский проспект, 28", City: "Санкт-Петербург", PostalCode: "191186", Country: "RU",
				},
				Payment: domain.PaymentInfo{Method: "bitcoin"},
			},
			wantErr: domain.ErrPaymentMethodInvalid,
		},
		{
			name: "incomplete address",
			input: PlaceOrderInput{
				BuyerID:         "buyer-1",
				Items:           []PlaceOrderItem{{ProductID: "product-1", Qty: 1}},
				ShippingAddress: domain.ShippingAddress{City: "Санкт-Петербург"},
				Payment:         domain.PaymentInfo{Method: domain.PaymentMethodCard},
			},
			wantErr: domain.ErrAddressIncomplete,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := wf.PlaceOrder(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestWorkflow_PlaceOrder_UnknownProduct(t *testing.T) {
	products := memory.NewProductRepository()
	wf, _, _, _ := newTestWorkflow(products)

	_, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "ghost", Qty: 1}))
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestWorkflow_PlaceOrder_InsufficientStock(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	wf, orders, _, _ := newTestWorkflow(products)

	_, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 10}))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %T", err)
	}
	if stockErr.ProductID != "product-1" || stockErr.Requested != 10 || stockErr.Available != 5 {
		t.Fatalf("unexpected stock error details: %+v", stockErr)
	}

	product, _ := products.Get("product-1")
	if product.Stock != 5 {
		t.Fatalf("stock should be untouched, got %d", product.Stock)
	}

	all, err := orders.ListAll(0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("no order should be persisted, got %d", len(all))
	}
}

func TestWorkflow_PlaceOrder_DuplicateItemsAggregated(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	wf, _, _, _ := newTestWorkflow(products)

	// По отдельности позиции проходят проверку, суммарно — нет.
	_, err := wf.PlaceOrder(placeInput("buyer-1",
		PlaceOrderItem{ProductID: "product-1", Qty: 3},
		PlaceOrderItem{ProductID: "product-1", Qty: 3},
	))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for aggregated qty, got %v", err)
	}

	product, _ := products.Get("product-1")
	if product.Stock != 5 {
		t.Fatalf("stock should be untouched, got %d", product.Stock)
	}
}

func TestWorkflow_PlaceOrder_CompensatesOnDecrementFailure(t *testing.T) {
	realProducts := memory.NewProductRepository()
	seedProduct(t, realProducts, "product-1", 1000, 5)
	seedProduct(t, realProducts, "product-2", 500, 5)
	products := &flakyProducts{ProductRepository: realProducts, failID: "product-2"}

	wf, orders, outbox, _ := newTestWorkflow(products)

	_, err := wf.PlaceOrder(placeInput("buyer-1",
		PlaceOrderItem{ProductID: "product-1", Qty: 2},
		PlaceOrderItem{ProductID: "product-2", Qty: 1},
	))
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	// Сток первого товара был списан и должен вернуться компенсацией.
	first, _ := realProducts.Get("product-1")
	if first.Stock != 5 {
		t.Fatalf("expected compensated stock 5, got %d", first.Stock)
	}
	second, _ := realProducts.Get("product-2")
	if second.Stock != 5 {
		t.Fatalf("second product stock should be untouched, got %d", second.Stock)
	}

	all, err := orders.ListAll(0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("order record should be rolled back, got %d", len(all))
	}

	pending, _ := outbox.PullPending(0)
	if len(pending) != 0 {
		t.Fatalf("no events should be emitted for failed placement, got %d", len(pending))
	}
}

func TestWorkflow_Cancel_RestocksAndRejectsSecondCancel(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	wf, orders, outbox, _ := newTestWorkflow(products)

	placed, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 3}))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	cancelled, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "передумал", false)
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected status cancelled, got %s", cancelled.Status)
	}
	if cancelled.PaymentInfo.Status == domain.PaymentStatusFailed {
		t.Fatal("customer cancel must not mark payment failed")
	}

	product, _ := products.Get("product-1")
	if product.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", product.Stock)
	}

	stored, _ := orders.Get(placed.ID)
	if stored.Status != domain.OrderStatusCancelled {
		t.Fatalf("stored status mismatch: %s", stored.Status)
	}

	// Повторная отмена отклоняется и не трогает сток.
	if _, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "", false); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
	}
	product, _ = products.Get("product-1")
	if product.Stock != 5 {
		t.Fatalf("second cancel must not change stock, got %d", product.Stock)
	}

	pending, _ := outbox.PullPending(0)
	var hasCancelled bool
	for _, msg := range pending {
		if msg.EventType == domain.TimelineEventOrderCancelled {
			hasCancelled = true
		}
	}
	if !hasCancelled {
		t.Fatal("expected OrderCancelled outbox event")
	}
}

func TestWorkflow_Cancel_Authorization(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	wf, _, _, _ := newTestWorkflow(products)

	placed, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 1}))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if _, err := wf.Cancel(placed.ID, "stranger", domain.RoleCustomer, "", false); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	// Администратор отменяет чужой заказ и помечает оплату как failed.
	cancelled, err := wf.Cancel(placed.ID, "admin-1", domain.RoleAdmin, "fraud check", true)
	if err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if cancelled.PaymentInfo.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected payment status failed, got %s", cancelled.PaymentInfo.Status)
	}
}

func TestWorkflow_Cancel_ShippedOrder(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	wf, _, _, _ := newTestWorkflow(products)

	placed, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 1}))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if _, err := wf.UpdateStatus(placed.ID, domain.OrderStatusShipped); err != nil {
		t.Fatalf("update status: %v", err)
	}

	if _, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "", false); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Fatalf("expected ErrOrderNotCancellable for shipped order, got %v", err)
	}
}

func TestWorkflow_Cancel_FailedSaveRollsBackRestock(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)

	orders := &unreliableOrders{OrderRepository: memory.NewOrderRepository()}
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	wf := NewWorkflowWithoutMetrics(orders, products, timeline, outbox, log.New().WithField("test", "workflow"))

	placed, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 3}))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Статус не сохранился: возврат стока должен быть снят обратно,
	// иначе повторная отмена вернёт его второй раз.
	orders.saveFailures = 1
	if _, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "", false); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	product, _ := products.Get("product-1")
	if product.Stock != 2 {
		t.Fatalf("failed cancel must leave stock decremented, got %d", product.Stock)
	}
	stored, _ := orders.Get(placed.ID)
	if stored.Status != domain.OrderStatusPending {
		t.Fatalf("failed cancel must leave order pending, got %s", stored.Status)
	}

	// Повтор отмены целиком: сток возвращается ровно один раз.
	if _, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "", false); err != nil {
		t.Fatalf("retried cancel: %v", err)
	}
	product, _ = products.Get("product-1")
	if product.Stock != 5 {
		t.Fatalf("expected stock 5 after retried cancel, got %d", product.Stock)
	}
	stored, _ = orders.Get(placed.ID)
	if stored.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled after retry, got %s", stored.Status)
	}
}

func TestWorkflow_Cancel_RestockErrorAbortsCancel(t *testing.T) {
	inner := memory.NewProductRepository()
	seedProduct(t, inner, "product-1", 1000, 5)
	seedProduct(t, inner, "product-2", 2000, 4)
	products := &unreliableRestock{ProductRepository: inner, failID: "product-2", failures: 1}

	wf, orders, _, _ := newTestWorkflow(products)

	placed, err := wf.PlaceOrder(placeInput("buyer-1",
		PlaceOrderItem{ProductID: "product-1", Qty: 2},
		PlaceOrderItem{ProductID: "product-2", Qty: 1},
	))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Транзиентная ошибка возврата по второй позиции прерывает отмену;
	// уже возвращённый сток первой позиции снимается обратно.
	if _, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "", false); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	first, _ := inner.Get("product-1")
	if first.Stock != 3 {
		t.Fatalf("aborted cancel must leave product-1 stock at 3, got %d", first.Stock)
	}
	second, _ := inner.Get("product-2")
	if second.Stock != 3 {
		t.Fatalf("aborted cancel must leave product-2 stock at 3, got %d", second.Stock)
	}
	stored, _ := orders.Get(placed.ID)
	if stored.Status != domain.OrderStatusPending {
		t.Fatalf("aborted cancel must leave order pending, got %s", stored.Status)
	}

	// После восстановления хранилища отмена проходит целиком.
	if _, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "", false); err != nil {
		t.Fatalf("retried cancel: %v", err)
	}
	first, _ = inner.Get("product-1")
	second, _ = inner.Get("product-2")
	if first.Stock != 5 || second.Stock != 4 {
		t.Fatalf("expected stocks 5/4 after retried cancel, got %d/%d", first.Stock, second.Stock)
	}
}

func TestWorkflow_Cancel_DeletedProductSkipped(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	seedProduct(t, products, "product-2", 2000, 4)
	wf, orders, _, _ := newTestWorkflow(products)

	placed, err := wf.PlaceOrder(placeInput("buyer-1",
		PlaceOrderItem{ProductID: "product-1", Qty: 1},
		PlaceOrderItem{ProductID: "product-2", Qty: 1},
	))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Товар выпилен из каталога после покупки: отмена проходит,
	// позиция пропускается.
	if err := products.Delete("product-2"); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	if _, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "", false); err != nil {
		t.Fatalf("cancel with deleted product: %v", err)
	}

	product, _ := products.Get("product-1")
	if product.Stock != 5 {
		t.Fatalf("expected product-1 stock restored to 5, got %d", product.Stock)
	}
	stored, _ := orders.Get(placed.ID)
	if stored.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}
}

func TestWorkflow_UpdateStatus(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	wf, orders, outbox, _ := newTestWorkflow(products)

	placed, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 1}))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if _, err := wf.UpdateStatus(placed.ID, "teleported"); !errors.Is(err, domain.ErrOrderStatusInvalid) {
		t.Fatalf("expected ErrOrderStatusInvalid, got %v", err)
	}
	if _, err := wf.UpdateStatus("ghost", domain.OrderStatusShipped); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	updated, err := wf.UpdateStatus(placed.ID, domain.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}

	stored, _ := orders.Get(placed.ID)
	if stored.Status != domain.OrderStatusProcessing {
		t.Fatalf("stored status mismatch: %s", stored.Status)
	}

	// Повторная установка того же статуса — no-op без событий.
	before, _ := outbox.PullPending(0)
	if _, err := wf.UpdateStatus(placed.ID, domain.OrderStatusProcessing); err != nil {
		t.Fatalf("idempotent update: %v", err)
	}
	after, _ := outbox.PullPending(0)
	if len(after) != len(before) {
		t.Fatalf("no-op update should not emit events: %d -> %d", len(before), len(after))
	}
}

func TestWorkflow_GetAndListAuthorization(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 10)
	wf, _, _, _ := newTestWorkflow(products)

	placed, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 1}))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if _, err := wf.PlaceOrder(placeInput("buyer-2", PlaceOrderItem{ProductID: "product-1", Qty: 2})); err != nil {
		t.Fatalf("place second order: %v", err)
	}

	if _, err := wf.Get(placed.ID, "buyer-2", domain.RoleCustomer); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := wf.Get(placed.ID, "admin-1", domain.RoleAdmin); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	mine, err := wf.ListByBuyer("buyer-1", 0)
	if err != nil {
		t.Fatalf("list by buyer: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != placed.ID {
		t.Fatalf("unexpected buyer orders: %+v", mine)
	}

	all, err := wf.ListAll(0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
}

func TestWorkflow_Timeline(t *testing.T) {
	products := memory.NewProductRepository()
	seedProduct(t, products, "product-1", 1000, 5)
	wf, _, _, _ := newTestWorkflow(products)

	placed, err := wf.PlaceOrder(placeInput("buyer-1", PlaceOrderItem{ProductID: "product-1", Qty: 1}))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if _, err := wf.Cancel(placed.ID, "buyer-1", domain.RoleCustomer, "передумал", false); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := wf.Timeline(placed.ID, "stranger", domain.RoleCustomer); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	events, err := wf.Timeline(placed.ID, "buyer-1", domain.RoleCustomer)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(events))
	}
	if events[0].Type != domain.TimelineEventOrderPlaced || events[1].Type != domain.TimelineEventOrderCancelled {
		t.Fatalf("unexpected event order: %+v", events)
	}
	if events[1].Reason != "передумал" {
		t.Fatalf("expected cancel reason preserved, got %q", events[1].Reason)
	}
}
