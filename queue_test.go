package simthread

import "testing"

func TestTCBQueueFIFO(t *testing.T) {
	a, b, c := &TCB{id: 1}, &TCB{id: 2}, &TCB{id: 3}
	var q tcbQueue

	if !q.empty() {
		t.Fatalf("new queue should be empty")
	}
	q.push(a)
	q.push(b)
	q.push(c)

	if q.len() != 3 {
		t.Fatalf("len = %d, want 3", q.len())
	}
	if !q.contains(b) {
		t.Fatalf("contains(b) = false, want true")
	}

	for _, want := range []*TCB{a, b, c} {
		got := q.pop()
		if got != want {
			t.Fatalf("pop() = %v, want %v", got, want)
		}
	}
	if !q.empty() {
		t.Fatalf("queue should be empty after draining")
	}
	if q.pop() != nil {
		t.Fatalf("pop() on empty queue should return nil")
	}
}

func TestCPUQueueFIFO(t *testing.T) {
	a, b := &CPU{id: 1}, &CPU{id: 2}
	var q cpuQueue

	q.push(a)
	q.push(b)
	if q.pop() != a {
		t.Fatalf("expected a first")
	}
	if q.pop() != b {
		t.Fatalf("expected b second")
	}
	if !q.empty() {
		t.Fatalf("queue should be empty")
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusNew:      "NEW",
		StatusReady:    "READY",
		StatusRunning:  "RUNNING",
		StatusBlocked:  "BLOCKED",
		StatusFinished: "FINISHED",
		Status(99):     "UNKNOWN",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
