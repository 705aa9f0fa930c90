// +build invariants

package internal

// AssertInvariants gates the HMM engine's invariant check: that the
// backward pass's full-panel iterator ends just before the panel
// start. It is compiled in only when building with -tags invariants,
// matching the cost/safety tradeoff of a debug build.
const AssertInvariants = true

// InvariantsMessage is appended to the program banner when invariant
// checking is compiled in.
const InvariantsMessage = "invariant checks "
