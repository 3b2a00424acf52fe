// Package supervisor owns the process lifecycle of the Alarm Clock service.
//
// A Supervisor wraps one Application and waits for a reason to stop it: SIGINT
// or SIGTERM, an application fault, cancellation of the run context, or an
// explicit Shutdown call. The first trigger moves the supervisor from Idle to
// ShuttingDown and starts the application's teardown on its own goroutine with
// a deadline. Every later trigger is ignored, so teardown runs at most once no
// matter how many signals arrive.
//
// When teardown settles (or its deadline passes) the supervisor records the
// exit code, moves to Terminated, runs its cleanups and calls its exit function
// exactly once:
//
//	Idle --trigger--> ShuttingDown --settled/timeout--> Terminated --> exit(code)
//
// Launch performs the full start sequence: configure the cache directory,
// construct the application and supervise it. Failures before construction
// completes never reach teardown.
package supervisor
