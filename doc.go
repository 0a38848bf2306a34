// Package delegation routes units of work to a pool of specialised workers.
//
// An [Engine] keeps a registry of workers fed by a worker catalog, picks the
// best worker for each incoming task, supervises worker health in the
// background and records how every delegated task went. Doing the work is
// left to an executor: a simulated one, a Claude model, or a local command.
//
// # Quick Start
//
//	e, err := delegation.New(delegation.WithExecutor(executor.NewSimulated(executor.SimulatedConfig{}, nil)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	e.RegisterWorker(ctx, subagent.Definition{
//	    ID:    "fe-1",
//	    Role:  subagent.RoleFrontendDev,
//	    Tools: []string{"Read", "Write"},
//	})
//	e.Start(ctx)
//	defer e.Stop()
//
//	resp := e.Delegate(ctx, subagent.Request{Task: "write a react component"})
//	fmt.Println(resp.Success, resp.Metadata.WorkerID)
//
// # Sub-packages
//
//   - [subagent] holds the shared data model and the running-task store.
//   - [registry] provides the worker store and its update rules.
//   - [health] drives the worker status state machine.
//   - [executor] provides dispatch capabilities.
//   - [catalog] loads worker definitions from disk and watches for changes.
//   - [hook] provides hook types for observing workers and tasks.
//   - [server] exposes the engine over HTTP.
package delegation
