package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_SetNotifiesInRegistrationOrder(t *testing.T) {
	s := New(0)

	var order []string
	s.Subscribe(func(v int) { order = append(order, "first") })
	s.Subscribe(func(v int) { order = append(order, "second") })

	s.Set(1)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 1, s.Get())
}

func TestStore_Update(t *testing.T) {
	s := New(10)

	var seen int
	s.Subscribe(func(v int) { seen = v })

	s.Update(func(v int) int { return v + 5 })

	assert.Equal(t, 15, seen)
	assert.Equal(t, 15, s.Get())
}

func TestStore_Unsubscribe(t *testing.T) {
	s := New(0)

	var count int
	unsub := s.Subscribe(func(v int) { count++ })

	s.Set(1)
	assert.Equal(t, 1, count)

	unsub()
	s.Set(2)
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ReentrantSetDoesNotDeadlock(t *testing.T) {
	s := New(0)

	var values []int
	s.Subscribe(func(v int) {
		values = append(values, v)
		if v == 1 {
			s.Set(2)
		}
	})

	s.Set(1)

	// The re-entrant Set runs inline, so the inner notification completes
	// before the outer call returns.
	assert.Equal(t, []int{1, 2}, values)
	assert.Equal(t, 2, s.Get())
}
