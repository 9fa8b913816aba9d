//go:build linux

package schedtop

import "github.com/ja7ad/schedtop/pkg/system/proc"

// Cache holds the last-known Task per task id across passes. It is owned by
// a single Sampler and touched only by its loop; no locking.
type Cache struct {
	tasks map[proc.TaskID]*Task
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{tasks: make(map[proc.TaskID]*Task)}
}

// Get returns the cached value for id, if any.
func (c *Cache) Get(id proc.TaskID) (*Task, bool) {
	t, ok := c.tasks[id]
	return t, ok
}

// Len returns the number of tracked tasks.
func (c *Cache) Len() int { return len(c.tasks) }

// Advance runs one sampling pass over the current enumeration. read performs
// a full attribute read; ok=false means the task vanished mid-read.
//
// Per task id:
//   - unseen id: read it; on success cache it and include it in the render
//     set (a task with an undefined affinity is cached but not rendered).
//   - cached id whose age stays under the refresh bound: carry every cached
//     field forward, bump the age, render nothing.
//   - cached id whose age wrapped: re-read; on success replace and render,
//     on failure retain the previous values.
//
// The cache is rebuilt from the enumeration alone, so ids that are no
// longer enumerated are evicted as a side effect.
func (c *Cache) Advance(ids []proc.TaskID, read func(proc.TaskID) (*Task, bool)) []*Task {
	next := make(map[proc.TaskID]*Task, len(ids))
	var render []*Task

	for _, id := range ids {
		if _, dup := next[id]; dup {
			continue
		}
		prev, cached := c.tasks[id]
		if cached {
			prev.age++
			if prev.age < refreshInterval {
				next[id] = prev
				continue
			}
			prev.age = 0
			cur, ok := read(id)
			if !ok {
				// refresh skipped this pass; stale values stay valid
				next[id] = prev
				continue
			}
			next[id] = cur
			if cur.defined {
				render = append(render, cur)
			}
			continue
		}

		cur, ok := read(id)
		if !ok {
			// gone before its first read; never cached, never rendered
			continue
		}
		next[id] = cur
		if cur.defined {
			render = append(render, cur)
		}
	}

	c.tasks = next
	return render
}
