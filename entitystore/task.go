package entitystore

import (
	"fmt"
)

// TaskAction names the Queryable method a Task is applied with.
type TaskAction int

const (
	ActionFilter TaskAction = iota
	ActionOrder
	ActionSkip
	ActionTake
	ActionInclude
	ActionMap
)

func (a TaskAction) String() string {
	switch a {
	case ActionFilter:
		return "filter"
	case ActionOrder:
		return "order"
	case ActionSkip:
		return "skip"
	case ActionTake:
		return "take"
	case ActionInclude:
		return "include"
	case ActionMap:
		return "map"
	default:
		return fmt.Sprintf("TaskAction(%d)", int(a))
	}
}

// Task is one deferred operation of a Query.
// Text carries the predicate, order field or include path, Count the skip/take amount.
type Task struct {
	action     TaskAction
	text       string
	count      int
	projection Projection
}

// Action returns the TaskAction of the Task.
func (t Task) Action() TaskAction {
	return t.action
}

// Text returns the predicate, order field, or include path of the Task.
func (t Task) Text() string {
	return t.text
}

// Count returns the amount of a skip or take Task.
func (t Task) Count() int {
	return t.count
}

// Projection returns the projection of a map Task.
func (t Task) Projection() Projection {
	return t.projection
}

func (t Task) isPaging() bool {
	return t.action == ActionSkip || t.action == ActionTake
}

func (t Task) isIgnoredByCount() bool {
	return t.isPaging() || t.action == ActionOrder || t.action == ActionMap
}

// apply invokes the Queryable method matching the Task's action.
func (t Task) apply(queryable Queryable) Queryable {
	switch t.action {
	case ActionFilter:
		return queryable.Filter(t.text)
	case ActionOrder:
		return queryable.Order(t.text)
	case ActionSkip:
		return queryable.Skip(t.count)
	case ActionTake:
		return queryable.Take(t.count)
	case ActionInclude:
		return queryable.Include(t.text)
	case ActionMap:
		return queryable.Map(t.projection)
	default:
		panic(fmt.Sprintf("entitystore: unhandled task action %v", t.action))
	}
}

func filterTask(predicate string) Task {
	return Task{action: ActionFilter, text: predicate}
}

func orderTask(field string, desc bool) Task {
	if desc {
		return Task{action: ActionOrder, text: "-" + field}
	}

	return Task{action: ActionOrder, text: field}
}

func skipTask(n int) Task {
	return Task{action: ActionSkip, count: n}
}

func takeTask(n int) Task {
	return Task{action: ActionTake, count: n}
}

func includeTask(path string) Task {
	return Task{action: ActionInclude, text: path}
}

func mapTask(projection Projection) Task {
	return Task{action: ActionMap, projection: projection}
}

// taskList is a persistent singly-linked list of tasks, newest first.
// Appending never mutates an existing node, so derived queries share their common prefix.
type taskList struct {
	last   Task
	prev   *taskList
	length int
}

func (l *taskList) append(task Task) *taskList {
	return &taskList{last: task, prev: l, length: l.len() + 1}
}

func (l *taskList) len() int {
	if l == nil {
		return 0
	}

	return l.length
}

func (l *taskList) lastTask() (Task, bool) {
	if l == nil {
		return Task{}, false
	}

	return l.last, true
}

// slice returns the tasks in the order they were appended.
func (l *taskList) slice() []Task {
	tasks := make([]Task, l.len())

	i := len(tasks) - 1
	for node := l; node != nil; node = node.prev {
		tasks[i] = node.last
		i--
	}

	return tasks
}
