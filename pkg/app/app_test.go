package app

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangacache/pkg/app/screens"
	"github.com/kerbaras/mangacache/pkg/events"
)

func TestForward_CoalescesRefreshesKeepsToasts(t *testing.T) {
	bus := events.NewBus()
	gate := make(chan struct{})

	var mu sync.Mutex
	var got []tea.Msg
	stop := forward(bus, func(msg tea.Msg) {
		<-gate
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})
	defer stop()

	for range 50 {
		events.Changed(bus)
	}
	events.Notify(bus, events.ToastSuccess, "Downloaded One")
	events.Notify(bus, events.ToastError, "Failed to download Two")
	close(gate)

	count := func() (refreshes int, toasts []string) {
		mu.Lock()
		defer mu.Unlock()
		for _, msg := range got {
			switch msg := msg.(type) {
			case screens.RefreshMsg:
				refreshes++
			case screens.ToastMsg:
				toasts = append(toasts, msg.Message)
			}
		}
		return refreshes, toasts
	}

	require.Eventually(t, func() bool {
		_, toasts := count()
		return len(toasts) == 2
	}, time.Second, 5*time.Millisecond)

	refreshes, toasts := count()
	assert.Equal(t, []string{"Downloaded One", "Failed to download Two"}, toasts)
	assert.GreaterOrEqual(t, refreshes, 1)
	assert.LessOrEqual(t, refreshes, 2)
}

func TestForward_DropsToastsPastBuffer(t *testing.T) {
	bus := events.NewBus()
	gate := make(chan struct{})

	var mu sync.Mutex
	delivered := 0
	stop := forward(bus, func(tea.Msg) {
		<-gate
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	defer stop()

	for range eventBuffer + 20 {
		events.Notify(bus, events.ToastInfo, "Downloading")
	}
	close(gate)

	// The sender may hold one toast on top of the full queue.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered >= eventBuffer
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, delivered, eventBuffer+1)
}
