package converter

import (
	"reflect"
	"testing"
)

func TestProgress(t *testing.T) {
	t.Run("Fixed schedule", func(t *testing.T) {
		rec := &recorder{}
		p := newProgress(rec.record)
		p.advance(30, 10)
		p.advance(60, 10)
		p.advance(90, 10)
		p.done()

		want := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
		if !reflect.DeepEqual(rec.values, want) {
			t.Errorf("Expected %v, got %v", want, rec.values)
		}
	})

	t.Run("Never goes backwards", func(t *testing.T) {
		rec := &recorder{}
		p := newProgress(rec.record)
		p.report(50)
		p.report(20)
		p.report(50)
		p.report(75)
		p.done()

		want := []int{50, 75, 100}
		if !reflect.DeepEqual(rec.values, want) {
			t.Errorf("Expected %v, got %v", want, rec.values)
		}
	})

	t.Run("Clamps range", func(t *testing.T) {
		rec := &recorder{}
		p := newProgress(rec.record)
		p.report(-5)
		p.report(150)
		p.done()

		want := []int{0, 100}
		if !reflect.DeepEqual(rec.values, want) {
			t.Errorf("Expected %v, got %v", want, rec.values)
		}
	})

	t.Run("Nil callback", func(t *testing.T) {
		p := newProgress(nil)
		p.advance(90, 15)
		p.done()
		if p.last != 100 {
			t.Errorf("Expected last 100, got %d", p.last)
		}
	})
}
