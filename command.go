package zx

// CommandKind tags the variant carried by a Command posted to a
// baseSocket's wake Mailbox. spec.md §3 models the full pipe/socket/
// context lifecycle (bind, attach, the two-phase pipe-term handshake,
// context-wide term, reap) as Command variants dispatched through one
// mailbox per object. This core only routes the three pipe-readiness
// events through that mailbox — they are the only transitions an
// unrelated goroutine (a pipe's Send, a transport's accept loop) needs to
// wake a blocked Send/Recv for. The rest of the lifecycle spec.md §3
// tags as Commands is implemented as direct synchronous calls instead,
// each for a concrete reason recorded in DESIGN.md: Bind/acceptLoop's
// pipe attach has no async boundary to cross; the pipe-term handshake is
// local two-party state already owned by pipe.go's pipeEnd; and
// Context.Term's fan-out to every socket is a one-shot operation a
// sync.WaitGroup (reaper.stopAll) expresses more directly than a
// hand-rolled command queue would.
type CommandKind int

const (
	// CmdActivateRead signals that a Pipe has a message ready.
	CmdActivateRead CommandKind = iota
	// CmdActivateWrite signals that a Pipe has drained below its HWM.
	CmdActivateWrite
	// CmdHiccup signals that a Pipe's transport reconnected and dropped
	// in-flight messages.
	CmdHiccup
)

// Command is a tagged record addressed to one destination object's
// mailbox. Payload fields not relevant to Kind are left zero.
type Command struct {
	Kind CommandKind
	Pipe Pipe
}
