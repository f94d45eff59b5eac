package observe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueNotifiesOnChange(t *testing.T) {
	v := New(1)

	var got []int
	cancel := v.Subscribe(func(n int) { got = append(got, n) })

	require.True(t, v.Set(2))
	require.False(t, v.Set(2), "same value must not notify")
	require.True(t, v.Set(3))
	assert.Equal(t, []int{1, 2, 3}, got)

	cancel()
	cancel()
	v.Set(4)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 4, v.Get())
}

func TestValueSubscribersInOrder(t *testing.T) {
	v := New("")

	var order []string
	v.Subscribe(func(string) { order = append(order, "a") })
	v.Subscribe(func(string) { order = append(order, "b") })
	order = nil

	v.Set("x")
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestValueWithoutEqualAlwaysNotifies(t *testing.T) {
	v := NewWithEqual[error](nil, nil)

	calls := 0
	v.Subscribe(func(error) { calls++ })
	boom := errors.New("boom")
	v.Set(boom)
	v.Set(boom)
	assert.Equal(t, 3, calls)
}

func TestSubscriberMaySetAnotherValue(t *testing.T) {
	a := New(0)
	b := New(0)
	a.Subscribe(func(n int) { b.Set(n * 10) })

	a.Set(4)
	assert.Equal(t, 40, b.Get())
}
