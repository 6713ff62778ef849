// Package executor provides the bounded worker pool used for parallel dispatch.
//
// An Executor owns MaxConcurrent slots. A Group scopes one dispatch phase:
// Submit waits for a slot and runs the task on its own goroutine, the first
// failure cancels the group context, and Wait joins every started task.
// A slot is returned only after its task has fully finished, so a shared
// Executor never sees a half-finished task from an aborted phase.
//
//	exec := executor.New(executor.Config{Name: "dispatch", MaxConcurrent: 4})
//	g := exec.NewGroup(ctx)
//	for _, unit := range units {
//	    if err := g.Submit(unit.run); err != nil {
//	        break
//	    }
//	}
//	err := g.Wait()
package executor
