package config

import (
	"reflect"
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("TK_NAME", "  dinner ")
	if got := String("TK_NAME", "x"); got != "dinner" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("TK_NAME", "")
	if got := String("TK_NAME", "x"); got != "x" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if _, err := RequiredString("TK_NAME"); err == nil {
		t.Fatal("expected error for missing required value")
	}
}

func TestPort(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"8085", false},
		{"", false},
		{"0", true},
		{"70000", true},
		{"http", true},
	}
	for _, tt := range tests {
		t.Setenv("TK_PORT", tt.value)
		_, err := Port("TK_PORT", "8085")
		if (err != nil) != tt.wantErr {
			t.Fatalf("Port(%q) err=%v, wantErr=%v", tt.value, err, tt.wantErr)
		}
	}
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("TK_INT", "20")
	t.Setenv("TK_DUR", "90m")
	t.Setenv("TK_BOOL", "true")
	t.Setenv("TK_FLOAT", "0.25")

	if n, err := Int("TK_INT", 1); err != nil || n != 20 {
		t.Fatalf("Int: %d %v", n, err)
	}
	if d, err := Duration("TK_DUR", 0); err != nil || d != 90*time.Minute {
		t.Fatalf("Duration: %s %v", d, err)
	}
	if b, err := Bool("TK_BOOL", false); err != nil || !b {
		t.Fatalf("Bool: %v %v", b, err)
	}
	if f, err := Float("TK_FLOAT", 1); err != nil || f != 0.25 {
		t.Fatalf("Float: %v %v", f, err)
	}
	if d, err := Duration("TK_UNSET", time.Hour); err != nil || d != time.Hour {
		t.Fatalf("expected fallback, got %s %v", d, err)
	}

	t.Setenv("TK_INT", "twenty")
	if _, err := Int("TK_INT", 1); err == nil {
		t.Fatal("expected Int error")
	}
	t.Setenv("TK_DUR", "90")
	if _, err := Duration("TK_DUR", 0); err == nil {
		t.Fatal("expected Duration error for unitless value")
	}
}

func TestList(t *testing.T) {
	t.Setenv("TK_BROKERS", "kafka-1:9092, ,kafka-2:9092 ")
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if got := List("TK_BROKERS", nil); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := List("TK_MISSING", []string{"a"}); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected fallback, got %v", got)
	}
}
