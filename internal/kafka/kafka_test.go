package kafka

import (
	"reflect"
	"testing"
)

func TestParseBrokers(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"single", "kafka-broker:9092", []string{"kafka-broker:9092"}},
		{"multiple", "a:9092,b:9092", []string{"a:9092", "b:9092"}},
		{"whitespace", " a:9092 , b:9092 ", []string{"a:9092", "b:9092"}},
		{"empty entries dropped", "a:9092,,b:9092,", []string{"a:9092", "b:9092"}},
		{"empty input", "", []string{}},
	}
	for _, tc := range cases {
		got := ParseBrokers(tc.raw)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: ParseBrokers(%q) = %v, want %v", tc.name, tc.raw, got, tc.want)
		}
	}
}
