package memory

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewWindow_Defaults(t *testing.T) {
	tests := []struct {
		name string
		k    int
		want int
	}{
		{"explicit capacity", 3, 3},
		{"zero falls back to default", 0, DefaultExchanges},
		{"negative falls back to default", -1, DefaultExchanges},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(tt.k)
			if got := w.Capacity(); got != tt.want {
				t.Errorf("Capacity() = %d, want %d", got, tt.want)
			}
			if w.Len() != 0 {
				t.Errorf("new window Len() = %d, want 0", w.Len())
			}
		})
	}
}

func TestWindow_AppendAndHistory(t *testing.T) {
	w := NewWindow(2)
	w.Append("what is theft", "Section 378 covers theft")

	turns := w.History()
	if len(turns) != 2 {
		t.Fatalf("History() returned %d turns, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Text != "what is theft" {
		t.Errorf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Text != "Section 378 covers theft" {
		t.Errorf("unexpected assistant turn: %+v", turns[1])
	}
}

func TestWindow_FIFOEviction(t *testing.T) {
	const k = 2
	w := NewWindow(k)

	// Append more exchanges than the window holds.
	const n = 5
	for i := 1; i <= n; i++ {
		w.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	if w.Len() != k {
		t.Fatalf("Len() = %d, want %d", w.Len(), k)
	}

	turns := w.History()
	if len(turns) != 2*k {
		t.Fatalf("History() returned %d turns, want %d", len(turns), 2*k)
	}

	// The last k exchanges survive in original order.
	want := []string{"q4", "a4", "q5", "a5"}
	for i, text := range want {
		if turns[i].Text != text {
			t.Errorf("turns[%d].Text = %q, want %q", i, turns[i].Text, text)
		}
	}
}

func TestWindow_EvictionAtCapacityKeepsNewest(t *testing.T) {
	// Window at capacity [E1, E2]; appending E3 must yield [E2, E3].
	w := NewWindow(2)
	w.Append("q1", "a1")
	w.Append("q2", "a2")
	w.Append("q3", "a3")

	exchanges := w.Exchanges()
	if len(exchanges) != 2 {
		t.Fatalf("Exchanges() returned %d, want 2", len(exchanges))
	}
	if exchanges[0].User.Text != "q2" || exchanges[1].User.Text != "q3" {
		t.Errorf("expected [q2, q3], got [%s, %s]",
			exchanges[0].User.Text, exchanges[1].User.Text)
	}
}

func TestWindow_Clear(t *testing.T) {
	w := NewWindow(2)
	w.Append("q1", "a1")
	w.Append("q2", "a2")

	w.Clear()

	if w.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", w.Len())
	}
	if turns := w.History(); len(turns) != 0 {
		t.Errorf("History() after Clear() returned %d turns, want 0", len(turns))
	}

	// Clear on an already-empty window is safe.
	w.Clear()
	if w.Len() != 0 {
		t.Errorf("Len() after double Clear() = %d, want 0", w.Len())
	}
}

func TestWindow_HistoryIsACopy(t *testing.T) {
	w := NewWindow(2)
	w.Append("q1", "a1")

	turns := w.History()
	turns[0].Text = "mutated"

	if w.History()[0].Text != "q1" {
		t.Error("mutating History() result leaked into the window")
	}
}

func TestWindow_ConcurrentAccess(t *testing.T) {
	w := NewWindow(4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				w.Append(fmt.Sprintf("q%d-%d", n, j), "a")
				_ = w.History()
			}
		}(i)
	}
	wg.Wait()

	if w.Len() != 4 {
		t.Errorf("Len() = %d, want capacity 4", w.Len())
	}
}
