package app

import (
	"reflect"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestParseBrokerList(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "whitespace only", input: "   ", want: nil},
		{name: "single", input: "kafka-1:9092", want: []string{"kafka-1:9092"}},
		{
			name:  "multiple with spaces",
			input: "kafka-1:9092, kafka-2:9092 ,kafka-3:9092",
			want:  []string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"},
		},
		{
			name:  "empty elements dropped",
			input: ",kafka-1:9092,,",
			want:  []string{"kafka-1:9092"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseBrokerList(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("parseBrokerList(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	for _, brokers := range []string{"", "   ", ",,"} {
		producer, err := initKafkaProducer(brokers, logger)
		if err != nil {
			t.Errorf("brokers %q: expected no error, got %v", brokers, err)
		}
		if producer != nil {
			t.Errorf("brokers %q: expected nil producer", brokers)
		}
	}
}

func TestInitKafkaProducer_UnreachableBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	// Brokers не существуют: ошибка ожидается, но без паники, сервис
	// должен уметь стартовать без Kafka.
	for _, brokers := range []string{
		"invalid-broker:9999",
		"broker1:9092,broker2:9092,broker3:9092",
		"broker1:9092, broker2:9092, broker3:9092",
	} {
		producer, err := initKafkaProducer(brokers, logger)
		if err == nil {
			t.Errorf("brokers %q: expected error", brokers)
		}
		if producer != nil {
			t.Errorf("brokers %q: expected nil producer on error", brokers)
		}
	}
}

func TestCloseKafka_NilProducer(t *testing.T) {
	logger := log.WithField("test", "kafka")

	closeKafka(nil, logger)

	producer, _ := initKafkaProducer("localhost:9999", logger)
	closeKafka(producer, logger)
}
