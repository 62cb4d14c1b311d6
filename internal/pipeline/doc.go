// Package pipeline runs the four-stage moderation state machine.
//
// A run threads a fresh domain.PipelineState through the stages in a fixed
// order:
//
//	Start -> Analyzed -> Audited -> Resolved -> Persisted
//
// Each stage renders a prompt from the state, makes one oracle call, parses
// the labeled sections of the response and returns a partial update. The
// Orchestrator folds updates into the state; it never branches or loops.
//
// # Failure Model
//
// Only an oracle failure aborts a run, and nothing is persisted for an
// aborted run. Malformed oracle output is recovered by the parser defaults.
// A failed write in the persistence stage is logged and counted but the
// verdict is still returned.
//
// There is no checkpointing. Running the same input again starts from Start
// and repeats every oracle call.
package pipeline
