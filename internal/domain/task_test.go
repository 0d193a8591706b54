package domain

import "testing"

func TestTaskStatusValid(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []TaskStatus{"", "done", "Pending", "in-progress"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestTaskPriorityValid(t *testing.T) {
	for _, p := range []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	for _, p := range []TaskPriority{"", "urgent", "HIGH"} {
		if p.Valid() {
			t.Errorf("%q should be invalid", p)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	task := Task{Title: "T1"}
	task.ApplyDefaults()
	if task.Status != TaskStatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
	if task.Priority != TaskPriorityMedium {
		t.Errorf("priority = %q, want medium", task.Priority)
	}

	task = Task{Title: "T2", Status: TaskStatusCompleted, Priority: TaskPriorityHigh}
	task.ApplyDefaults()
	if task.Status != TaskStatusCompleted || task.Priority != TaskPriorityHigh {
		t.Errorf("explicit values overwritten: %q/%q", task.Status, task.Priority)
	}
}
