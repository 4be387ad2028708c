/*
ktask splits one large, CPU-bound unit of work into chunks and runs them concurrently, across the affinity domains
(NUMA nodes) of the host, with a bounded number of workers for the whole process.

A task is a set of Node ranges and a ChunkFunc applied to successive slices of them:

	err := ktask.Run(0, len(pages), ktask.NewCtl(func(start, end int) error {
		clear(pages[start:end])
		return nil
	}, 64))

The calling goroutine always takes part in the task. Additional workers are only started when the Limiter grants
them: it allows only 80% of the execution contexts to run workers, process-wide and per domain, so concurrent tasks
share the machine instead of oversubscribing it. When no slot is left, a task simply runs with fewer workers.

Chunks are cut about four times smaller than an even split between the workers, so that faster workers pick up more
of them, and are kept a multiple of the minimum chunk size. A worker running out of work on its node moves to another
node with work left, chosen at random, and follows it onto that node's domain when the domain has room.

The first error returned by a chunk fails the task: workers stop claiming chunks, chunks already running complete, and
RunNodes returns that error. There is no partial result: collect per-chunk results from within the ChunkFunc.

Workers run in goroutine pools (one per domain, pinning their thread on the domain CPUs, and one unbound) which live
as long as their Scheduler. Default provides a process-wide Scheduler; New builds isolated ones.
*/

package ktask
