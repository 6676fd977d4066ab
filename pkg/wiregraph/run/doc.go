/*
Package run sends partial-run requests to an execution backend and merges the
answers back into an editor.

The backend sits behind the Executor interface; this package ships no
transport. A Dispatcher issues requests without waiting for them:

	d := run.NewDispatcher(editor, backend, "wf-1", run.WithStore(store))
	ticket, err := d.RunNode(ctx, "summarize", false)
	// ... later
	d.Wait()

RunNode moves the target to pending, resolves the minimal request with
cached outputs of upstream nodes, and hands it to a goroutine. When the
response arrives:

  - outputs are merged node by node and the nodes become completed
  - an error marks the target failed with the backend's message verbatim
  - a run id with no outputs is followed by a Poller until every reported
    node is terminal

Each RunNode issues a new sequence number for its target. A response older
than the target's latest request is dropped and reported as
wiregraph.ErrStaleResponse.

Close abandons in-flight runs and stops polling; nodes left pending stay
pending until the next run.
*/
package run
