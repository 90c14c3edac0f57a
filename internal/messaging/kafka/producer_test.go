package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	// Создаем mock producer
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидания
	mockProducer.ExpectSendMessageAndSucceed()

	// Создаем тестовое событие
	event := NewOrderEvent(
		EventTypeOrderPlaced,
		"test-order-123",
		"buyer-1",
		"pending",
		map[string]interface{}{
			"amount": "30.00",
		},
	)

	// Публикуем событие
	err := producer.PublishEvent(TopicOrderEvents, "test-order-123", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Проверяем, что все ожидания выполнены
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	// Создаем mock producer с ошибкой
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидание ошибки
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewOrderEvent(
		EventTypeOrderPlaced,
		"test-order-123",
		"buyer-1",
		"pending",
		nil,
	)

	// Публикуем событие
	err := producer.PublishEvent(TopicOrderEvents, "test-order-123", event)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_NotInitialized(t *testing.T) {
	var producer *Producer
	if err := producer.PublishEvent(TopicOrderEvents, "key", nil); err == nil {
		t.Fatal("expected error for nil producer")
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("close of nil producer should be no-op, got %v", err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	orderID := "order-123"
	buyerID := "buyer-1"
	status := "cancelled"
	metadata := map[string]interface{}{
		"reason": "customer request",
	}

	event := NewOrderEvent(EventTypeOrderCancelled, orderID, buyerID, status, metadata)

	if event.EventType != EventTypeOrderCancelled {
		t.Errorf("expected event type %s, got %s", EventTypeOrderCancelled, event.EventType)
	}

	if event.OrderID != orderID {
		t.Errorf("expected order id %s, got %s", orderID, event.OrderID)
	}

	if event.BuyerID != buyerID {
		t.Errorf("expected buyer id %s, got %s", buyerID, event.BuyerID)
	}

	if event.Status != status {
		t.Errorf("expected status %s, got %s", status, event.Status)
	}

	// Проверяем, что timestamp установлен
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}

	// Проверяем, что timestamp близок к текущему времени
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewCatalogEvent(t *testing.T) {
	productID := "product-42"
	metadata := map[string]interface{}{
		"percentage": 20,
	}

	event := NewCatalogEvent(EventTypeProductDiscounted, productID, metadata)

	if event.EventType != EventTypeProductDiscounted {
		t.Errorf("expected event type %s, got %s", EventTypeProductDiscounted, event.EventType)
	}

	if event.ProductID != productID {
		t.Errorf("expected product id %s, got %s", productID, event.ProductID)
	}

	if event.Metadata["percentage"] != 20 {
		t.Error("metadata not set correctly")
	}

	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}
