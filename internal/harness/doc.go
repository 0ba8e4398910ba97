// Package harness runs YAML scenarios against rule sets.
//
// A scenario names the CUE rule files to load, the initial state, a list of
// steps applied from outside the agent, and assertions on what happened:
//
//	name: counter
//	description: bump counts to three then announces it
//	rules: [counter.cue]
//	state: {count: 0}
//	steps:
//	  - set: {count: 1}
//	  - emit: reset
//	assertions:
//	  - type: state
//	    expect: {count: 3}
//	  - type: fired
//	    rule: bump
//	    count: 2
//
// The agent settles after Start and after every step, so fires are
// attributed to the step that caused them. Step 0 is the initial settle.
//
// Each run journals to a store (a fresh in-memory one unless WithStore is
// given) and the trace is read back from the journal. RunWithGolden
// compares that trace and the final state against a goldie fixture.
package harness
